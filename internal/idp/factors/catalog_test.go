package factors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/factors"
)

const mappingJSON = `{
	"amr": {
		"OTP":     [{"type": "OTP"}],
		"PWD-OTP": [{"type": "PWD"}, {"type": "OTP"}],
		"L1-bio":  [{"type": "BIO", "count": 1}]
	},
	"acr_amr": {
		"acr:code": ["OTP", "PWD-OTP"],
		"acr:bio":  ["L1-bio"]
	}
}`

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("valid document", func(t *testing.T) {
		c, err := factors.Parse([]byte(mappingJSON))
		require.NoError(t, err)
		require.Equal(t, []string{"acr:bio", "acr:code"}, c.ACRValues())
	})

	t.Run("undefined amr reference", func(t *testing.T) {
		_, err := factors.Parse([]byte(`{"amr": {}, "acr_amr": {"acr:x": ["ghost"]}}`))
		require.ErrorContains(t, err, "undefined amr")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := factors.Parse([]byte(`{`))
		require.Error(t, err)
	})
}

func TestAuthFactors(t *testing.T) {
	t.Parallel()

	c, err := factors.Parse([]byte(mappingJSON))
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("combinations follow acr order", func(t *testing.T) {
		combos, err := c.AuthFactors(ctx, []string{"acr:bio", "acr:code"})
		require.NoError(t, err)
		require.Equal(t, [][]domain.AuthFactor{
			{{Type: "BIO", Count: 1}},
			{{Type: "OTP"}},
			{{Type: "PWD"}, {Type: "OTP"}},
		}, combos)
	})

	t.Run("unknown acrs contribute nothing", func(t *testing.T) {
		combos, err := c.AuthFactors(ctx, []string{"acr:ghost", "acr:bio"})
		require.NoError(t, err)
		require.Len(t, combos, 1)
	})

	t.Run("returned combinations are copies", func(t *testing.T) {
		combos, err := c.AuthFactors(ctx, []string{"acr:bio"})
		require.NoError(t, err)
		combos[0][0].Type = "MUTATED"

		again, err := c.AuthFactors(ctx, []string{"acr:bio"})
		require.NoError(t, err)
		require.Equal(t, "BIO", again[0][0].Type)
	})
}

func TestDefault(t *testing.T) {
	t.Parallel()

	c := factors.Default()
	require.NotEmpty(t, c.ACRValues())

	combos, err := c.AuthFactors(context.Background(), c.ACRValues())
	require.NoError(t, err)
	require.NotEmpty(t, combos)
}
