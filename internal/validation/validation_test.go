package validation

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedutinova/minedash/internal/common"
)

func TestStruct_Login(t *testing.T) {
	assert.NoError(t, Struct(LoginForm{Username: "alice", Password: "pw"}))

	err := Struct(LoginForm{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	var ve ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve, 2)
	assert.Equal(t, "Username", ve[0].Field)
	assert.Equal(t, "is required", ve[0].Message)
}

func TestStruct_Site(t *testing.T) {
	ok := SiteForm{Name: "Escondida", Country: "Chile", Mineral: "Copper", Latitude: -24.27, Longitude: -69.07, Production: 1000}
	assert.NoError(t, Struct(ok))

	bad := ok
	bad.Latitude = 120
	bad.Production = -1
	err := Struct(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Latitude: must be between -90 and 90")
	assert.Contains(t, err.Error(), "Production: must be greater than or equal to 0")
}

func TestStruct_TextLimits(t *testing.T) {
	err := Struct(InsightForm{Text: strings.Repeat("x", MaxTextLength+1)})
	assert.ErrorContains(t, err, "at most 2000")
	assert.NoError(t, Struct(MineralForm{Name: "Cobalt", MarketPrice: 0}))
}

func TestForm_ParsesNumbers(t *testing.T) {
	f := NewForm(url.Values{
		"site_name":  {"  Escondida "},
		"latitude":   {"-24.27"},
		"longitude":  {"abc"},
		"production": {"12.5"},
	})
	assert.Equal(t, "Escondida", f.String("site_name"))
	assert.Equal(t, -24.27, f.Float("latitude"))
	assert.Equal(t, 0.0, f.Float("longitude"))
	assert.Equal(t, int64(0), f.Int("production"))
	assert.Equal(t, 0.0, f.Float("missing"))

	err := f.Validate(CoordsForm{Name: "Escondida"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Equal(t, "longitude: must be a number; production: must be a whole number", err.Error())
}
