package recipe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/mealplanner/capability"
	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

func candidate() recipe.Record {
	return recipe.Record{
		Name:         "Chana Masala",
		SourceURL:    "https://example.com/chana",
		Ingredients:  []string{"chickpeas", "tomato", "garam masala"},
		Instructions: []string{"fry onions", "add spices", "simmer chickpeas"},
		Servings:     "4",
	}
}

func TestGateOf(t *testing.T) {
	verified := candidate()
	verified.IsVerified = true
	verified.VerificationStatus = recipe.StatusVerified

	noSource := verified
	noSource.SourceURL = ""

	wrongStatus := verified
	wrongStatus.VerificationStatus = recipe.StatusPending

	tests := []struct {
		name    string
		record  recipe.Record
		want    recipe.Gate
		wantErr error
	}{
		{name: "empty", record: recipe.Record{}, want: recipe.NoRecipe},
		{name: "name only", record: recipe.Record{Name: "Soup"}, want: recipe.NoRecipe},
		{name: "populated", record: candidate(), want: recipe.Proposed},
		{name: "verified", record: verified, want: recipe.Verified},
		{name: "verified without source", record: noSource, wantErr: recipe.ErrInvariantViolation},
		{name: "verified with pending status", record: wrongStatus, wantErr: recipe.ErrInvariantViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recipe.GateOf(tt.record)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGate_String(t *testing.T) {
	assert.Equal(t, "NO_RECIPE", recipe.NoRecipe.String())
	assert.Equal(t, "PROPOSED", recipe.Proposed.String())
	assert.Equal(t, "VERIFIED", recipe.Verified.String())
}

func TestPropose(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)

	gate, err := g.Propose(context.Background(), candidate())
	require.NoError(t, err)
	assert.Equal(t, recipe.Proposed, gate)

	r, err := recipe.Load(store)
	require.NoError(t, err)
	assert.Equal(t, recipe.StatusPending, r.VerificationStatus)
	assert.False(t, r.IsVerified)
}

func TestPropose_RejectsVerifiedFlag(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)

	r := candidate()
	r.IsVerified = true

	_, err := g.Propose(context.Background(), r)
	assert.ErrorIs(t, err, recipe.ErrDirectVerification)
	assert.False(t, store.Has(state.KeyRecipe))
}

func TestVerify_FromNoRecipe(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)

	_, err := g.Verify(context.Background(), capability.Verification{Verified: true})
	assert.ErrorIs(t, err, recipe.ErrInvalidTransition)

	_, gate, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, recipe.NoRecipe, gate)
}

func TestVerify_Success(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)
	ctx := context.Background()

	_, err := g.Propose(ctx, candidate())
	require.NoError(t, err)

	got, err := g.Verify(ctx, capability.Verification{
		Verified:  true,
		SourceURL: "https://example.com/chana-verified",
		CookTime:  "30 min",
	})
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	assert.Equal(t, recipe.StatusVerified, got.VerificationStatus)
	assert.Equal(t, "https://example.com/chana-verified", got.SourceURL)
	assert.Equal(t, "30 min", got.CookTime)
	assert.Equal(t, []string{"chickpeas", "tomato", "garam masala"}, got.Ingredients)

	stored, gate, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, recipe.Verified, gate)
	assert.Equal(t, got, stored)
}

func TestVerify_Failure(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)
	ctx := context.Background()

	_, err := g.Propose(ctx, candidate())
	require.NoError(t, err)

	_, err = g.Verify(ctx, capability.Verification{Verified: false, Reason: "page not found"})
	assert.ErrorIs(t, err, recipe.ErrVerificationFailed)
	assert.Contains(t, err.Error(), "page not found")

	r, gate, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, recipe.Proposed, gate)
	assert.Equal(t, recipe.StatusFailed, r.VerificationStatus)
	assert.False(t, r.IsVerified)
}

func TestReset(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)
	ctx := context.Background()

	_, err := g.Reset(ctx, "no oven")
	assert.ErrorIs(t, err, recipe.ErrInvalidTransition)

	_, err = g.Propose(ctx, candidate())
	require.NoError(t, err)
	_, err = g.Verify(ctx, capability.Verification{Verified: true})
	require.NoError(t, err)

	r, err := g.Reset(ctx, "missing equipment: pressure cooker")
	require.NoError(t, err)
	assert.False(t, r.IsVerified)
	assert.Equal(t, recipe.StatusRejected, r.VerificationStatus)

	_, gate, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, recipe.Proposed, gate)

	reason, ok := store.Get(state.KeyRejectionReason)
	require.True(t, ok)
	assert.Equal(t, "missing equipment: pressure cooker", reason.Describe())
}

func TestClear(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)
	ctx := context.Background()

	_, err := g.Propose(ctx, candidate())
	require.NoError(t, err)
	require.NoError(t, g.Clear(ctx))

	r, gate, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, recipe.NoRecipe, gate)
	assert.Empty(t, r.Name)
}

// A session can only reach VERIFIED by walking NO_RECIPE, PROPOSED, VERIFIED.
func TestGate_Monotonic(t *testing.T) {
	store := state.NewStore(nil)
	g := recipe.NewGatekeeper(store, nil)
	ctx := context.Background()

	var seen []recipe.Gate
	record := func() {
		_, gate, err := g.Current()
		require.NoError(t, err)
		if len(seen) == 0 || seen[len(seen)-1] != gate {
			seen = append(seen, gate)
		}
	}

	record()
	_, _ = g.Verify(ctx, capability.Verification{Verified: true})
	record()
	_, _ = g.Propose(ctx, recipe.Record{Name: "draft"})
	record()
	_, _ = g.Propose(ctx, candidate())
	record()
	_, _ = g.Verify(ctx, capability.Verification{Verified: false})
	record()
	_, _ = g.Verify(ctx, capability.Verification{Verified: true})
	record()

	assert.Equal(t, []recipe.Gate{recipe.NoRecipe, recipe.Proposed, recipe.Verified}, seen)
}
