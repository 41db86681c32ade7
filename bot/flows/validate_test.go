package flows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+380501234567", "380501234567", true},
		{"380501234567", "380501234567", true},
		{"8501234567", "380501234567", true},
		{" +380501234567 ", "380501234567", true},
		{"0501234567", "", false},
		{"1234567", "", false},
		{"+38050123abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		} else {
			assert.Error(t, err, "input %q", tc.in)
		}
	}
}

func TestParseFullName(t *testing.T) {
	one, err := ParseFullName("Іван")
	require.NoError(t, err)
	assert.Equal(t, FullName{First: "Іван"}, one)

	two, err := ParseFullName("Петренко Іван")
	require.NoError(t, err)
	assert.Equal(t, FullName{Last: "Петренко", First: "Іван"}, two)

	three, err := ParseFullName("Петренко Іван Іванович")
	require.NoError(t, err)
	assert.Equal(t, FullName{Last: "Петренко", First: "Іван", Patronymic: "Іванович"}, three)

	four, err := ParseFullName("Петренко Іван Іванович молодший")
	require.NoError(t, err)
	assert.Equal(t, "Іванович молодший", four.Patronymic)
}

func TestParseFullNameRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "Іван123", "Іван-", "Іван @Петренко", "І"} {
		_, err := ParseFullName(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseCoordinates(t *testing.T) {
	lat, lon, err := ParseCoordinates("50.4501, 30.5234")
	require.NoError(t, err)
	assert.InDelta(t, 50.4501, lat, 1e-9)
	assert.InDelta(t, 30.5234, lon, 1e-9)

	lat, lon, err = ParseCoordinates("-33.9,151.2")
	require.NoError(t, err)
	assert.InDelta(t, -33.9, lat, 1e-9)
	assert.InDelta(t, 151.2, lon, 1e-9)
}

func TestParseCoordinatesRejectsInvalid(t *testing.T) {
	for _, in := range []string{"Київ", "50.45", "91, 30", "50, 181", "50.45; 30.52", ""} {
		_, _, err := ParseCoordinates(in)
		assert.Error(t, err, "input %q", in)
	}
}
