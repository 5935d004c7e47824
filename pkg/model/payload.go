package model

// PayloadKind tags the variant carried by a MessageLike (spec.md §3
// "Payload variants").
type PayloadKind string

const (
	PayloadKindMessage    PayloadKind = "message"
	PayloadKindCorrection PayloadKind = "correction"
	PayloadKindReaction   PayloadKind = "reaction"
	PayloadKindRetraction PayloadKind = "retraction"
	PayloadKindDelivery   PayloadKind = "delivery_receipt"
	PayloadKindRead       PayloadKind = "read_receipt"
	PayloadKindError      PayloadKind = "error"
)

// Payload is implemented by every MessageLike payload variant.
type Payload interface {
	Kind() PayloadKind
}

// EncryptionInfo records that a payload's body arrived (or was produced)
// via the encryption domain service; its presence is what sets
// Message.IsEncrypted. TargetDeviceID holds the sender's device id on
// decrypted inbound payloads and 0 on locally sent ones. It is not used as
// a key: the decrypt-fallback cache (spec.md §4.2) is keyed by room and
// message id only.
type EncryptionInfo struct {
	TargetDeviceID uint32
}

// AttachmentKind tags the media type of an Attachment (supplemented from
// original_source/.../message_like.rs; SPEC_FULL.md §4).
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is a single piece of media attached to a Message or Correction.
type Attachment struct {
	Kind         AttachmentKind
	URL          string
	ThumbnailURL string
	FileName     string
	MimeType     string
}

// Mention resolves an inline mention to a participant id and the byte range
// of the mention within Body.Raw (supplemented from message.rs).
type Mention struct {
	ParticipantID string
	Start, End    int
}

// Body is the textual content shared by Message and Correction payloads.
type Body struct {
	Raw      string
	HTML     string
	Mentions []Mention
}

// MessagePayload is an original message send.
type MessagePayload struct {
	Body           Body
	Attachments    []Attachment
	EncryptionInfo *EncryptionInfo
	IsTransient    bool // e.g. local "/omemo enable" system notices
}

func (MessagePayload) Kind() PayloadKind { return PayloadKindMessage }

// CorrectionPayload edits an earlier message (spec.md §4.1 step 4).
type CorrectionPayload struct {
	Body           Body
	Attachments    []Attachment
	EncryptionInfo *EncryptionInfo
}

func (CorrectionPayload) Kind() PayloadKind { return PayloadKindCorrection }

// ReactionPayload is a full snapshot of one actor's reactions to a target
// (spec.md §4.1 "Reaction folding" — declarative, last-writer-wins).
type ReactionPayload struct {
	Emojis []string
}

func (ReactionPayload) Kind() PayloadKind { return PayloadKindReaction }

// RetractionPayload removes a logical message from the reduced view while
// leaving its event history on disk (spec.md §3 invariants).
type RetractionPayload struct{}

func (RetractionPayload) Kind() PayloadKind { return PayloadKindRetraction }

// DeliveryReceiptPayload marks a target as delivered (monotonic, never cleared).
type DeliveryReceiptPayload struct{}

func (DeliveryReceiptPayload) Kind() PayloadKind { return PayloadKindDelivery }

// ReadReceiptPayload marks a target as read (monotonic, never cleared).
type ReadReceiptPayload struct{}

func (ReadReceiptPayload) Kind() PayloadKind { return PayloadKindRead }

// ErrorPayload records a stanza-level error in place of a message body.
type ErrorPayload struct {
	Message string
}

func (ErrorPayload) Kind() PayloadKind { return PayloadKindError }
