package encryption

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prose-im/prose-core-client-go/internal/rngsrc"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/repo"
)

// memDeviceService connects two Service instances in a test: publishing a
// bundle under one JID makes it loadable by the other. The repo-level
// fakes (key/session/device) live in pkg/repo and are reused here.
type memDeviceService struct {
	mu      sync.Mutex
	bundles map[jidutil.Participant]map[model.DeviceID]model.Bundle
	lists   map[jidutil.Participant][]model.Device
	as      jidutil.Participant
}

func newMemDeviceService() *memDeviceService {
	return &memDeviceService{
		bundles: map[jidutil.Participant]map[model.DeviceID]model.Bundle{},
		lists:   map[jidutil.Participant][]model.Device{},
	}
}

func (d *memDeviceService) scopedTo(user jidutil.Participant) *memDeviceService {
	return &memDeviceService{bundles: d.bundles, lists: d.lists, as: user}
}

func (d *memDeviceService) PublishDeviceList(_ context.Context, list model.DeviceList) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lists[d.as] = list.Devices
	return nil
}

func (d *memDeviceService) DeleteDeviceList(context.Context) error { return nil }

func (d *memDeviceService) PublishDeviceBundle(_ context.Context, bundle model.Bundle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bundles[d.as] == nil {
		d.bundles[d.as] = map[model.DeviceID]model.Bundle{}
	}
	d.bundles[d.as][bundle.DeviceID] = bundle
	return nil
}

func (d *memDeviceService) LoadDeviceBundle(_ context.Context, user jidutil.Participant, device model.DeviceID) (*model.Bundle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byDevice, ok := d.bundles[user]
	if !ok {
		return nil, nil
	}
	b, ok := byDevice[device]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (d *memDeviceService) DeleteDeviceBundle(context.Context, model.DeviceID) error { return nil }

func (d *memDeviceService) SendKeyTransportMessage(context.Context, jidutil.Participant, model.EncryptedPayload) error {
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, self jidutil.Participant, wire *memDeviceService) *Service {
	t.Helper()
	return New(self, "prosecli 0.1.0", repo.NewInMemoryEncryptionKeyRepo(), repo.NewInMemorySessionRepo(), repo.NewInMemoryDeviceRepo(), wire.scopedTo(self), rngsrc.Crypto{}, fixedClock{t: time.Now()}, zerolog.Nop())
}

func TestEncryptionRoundTrip(t *testing.T) {
	alice := jidutil.Participant("alice@prose.org")
	bob := jidutil.Participant("bob@prose.org")

	wire := newMemDeviceService()
	aliceSvc := newTestService(t, alice, wire)
	bobSvc := newTestService(t, bob, wire)

	ctx := context.Background()
	require.NoError(t, aliceSvc.Initialize(ctx))
	require.NoError(t, bobSvc.Initialize(ctx))

	// Each learns about the other's one device.
	aliceID, _, err := aliceSvc.keys.LocalDevice(ctx)
	require.NoError(t, err)
	bobID, _, err := bobSvc.keys.LocalDevice(ctx)
	require.NoError(t, err)

	require.NoError(t, aliceSvc.devices.SetAll(ctx, bob, []model.Device{{ID: bobID}}))
	require.NoError(t, bobSvc.devices.SetAll(ctx, alice, []model.Device{{ID: aliceID}}))

	payload, err := aliceSvc.Encrypt(ctx, bob, "hello bob")
	require.NoError(t, err)
	require.NotNil(t, payload)

	plaintext, err := bobSvc.Decrypt(ctx, alice, "m1", *payload)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", plaintext)
}

func TestPreKeyReplenishmentKeepsBundleAt100(t *testing.T) {
	alice := jidutil.Participant("alice@prose.org")
	wire := newMemDeviceService()
	svc := newTestService(t, alice, wire)

	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx))

	keys, err := svc.keys.LocalPreKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, model.PreKeyRangeMax)

	require.NoError(t, svc.keys.DeleteLocalPreKeys(ctx, []uint32{1, 2, 3}))
	require.NoError(t, svc.replenishPreKeys(ctx))

	keys, err = svc.keys.LocalPreKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, model.PreKeyRangeMax)
	for _, k := range keys {
		assert.GreaterOrEqual(t, k.ID, uint32(model.PreKeyRangeMin))
		assert.LessOrEqual(t, k.ID, uint32(model.PreKeyRangeMax))
	}
}
