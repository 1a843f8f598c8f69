package capability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/mealplanner/capability"
)

func TestSet_Verify(t *testing.T) {
	set := &capability.Set{
		Verifier: capability.VerifierFunc(func(_ context.Context, c capability.Candidate) (capability.Verification, error) {
			return capability.Verification{Verified: true, Name: c.Name, SourceURL: "https://example.com/dal"}, nil
		}),
	}

	got, err := set.Verify(context.Background(), capability.Candidate{Name: "dal"})
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Equal(t, "dal", got.Name)
}

func TestSet_NilMembersAreUnavailable(t *testing.T) {
	set := &capability.Set{}
	ctx := context.Background()

	_, err := set.Verify(ctx, capability.Candidate{Name: "x"})
	assert.ErrorIs(t, err, capability.ErrUnavailable)

	_, err = set.LookupAmbient(ctx, capability.Location{City: "Paris"})
	assert.ErrorIs(t, err, capability.ErrUnavailable)

	_, err = set.Illustrate(ctx, "chop onions")
	assert.ErrorIs(t, err, capability.ErrUnavailable)

	var f *capability.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, capability.KindIllustrate, f.Kind)
}

func TestSet_Timeout(t *testing.T) {
	set := &capability.Set{
		Timeout: 10 * time.Millisecond,
		Verifier: capability.VerifierFunc(func(ctx context.Context, _ capability.Candidate) (capability.Verification, error) {
			<-ctx.Done()
			return capability.Verification{}, ctx.Err()
		}),
	}

	_, err := set.Verify(context.Background(), capability.Candidate{Name: "slow"})
	assert.ErrorIs(t, err, capability.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSet_AmbientFailedStatus(t *testing.T) {
	set := &capability.Set{
		Ambient: capability.AmbientFunc(func(_ context.Context, l capability.Location) (capability.Ambient, error) {
			return capability.Ambient{Status: capability.AmbientFailed, Location: l.String(), ErrorMessage: "no station"}, nil
		}),
	}

	got, err := set.LookupAmbient(context.Background(), capability.Location{City: "Nuuk", Country: "Greenland"})
	assert.ErrorIs(t, err, capability.ErrUnavailable)
	assert.Equal(t, "Nuuk, Greenland", got.Location)
}

func TestSet_Illustrate(t *testing.T) {
	set := &capability.Set{
		Illustrator: capability.IllustratorFunc(func(_ context.Context, prompt string) (capability.Illustration, error) {
			return capability.Illustration{ArtifactID: "generated_image_1.png", Version: 1}, nil
		}),
	}

	got, err := set.Illustrate(context.Background(), "fold the dough")
	require.NoError(t, err)
	assert.Equal(t, "generated_image_1.png", got.ArtifactID)
}

func TestUnavailable_DoesNotDoubleWrap(t *testing.T) {
	cause := errors.New("connection refused")
	first := capability.Unavailable(capability.KindVerify, cause)
	second := capability.Unavailable(capability.KindAmbient, first)

	assert.Same(t, first, second)
	assert.ErrorIs(t, second, cause)
	assert.Contains(t, second.Error(), "verify_recipe unavailable")
}

func TestConfig(t *testing.T) {
	cfg := capability.DefaultConfig()
	cfg.Merge(&capability.Config{NATSURL: "nats://localhost:4222", Timeout: "5s"})

	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "mealplanner.capability", cfg.Subject)

	d, err := cfg.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	cfg.Timeout = "soon"
	_, err = cfg.TimeoutDuration()
	assert.Error(t, err)
}
