package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestISOWeekUsesWeekYear(t *testing.T) {
	cases := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2024, time.December, 31, 10, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2023, time.January, 1, 23, 59, 0, 0, time.UTC), "2022-W52"},
		{time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC), "2020-W53"},
		{time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), "2025-W10"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Key(tc.day, PolicyISOWeek), tc.day.Format(time.DateOnly))
	}
}

func TestDateKeyFormat(t *testing.T) {
	day := time.Date(2025, time.February, 7, 18, 30, 0, 0, time.UTC)
	require.Equal(t, "07-02-2025", Key(day, PolicyDate))
}

func TestKeyUsesLocationOfNow(t *testing.T) {
	bogota := time.FixedZone("COT", -5*60*60)
	utc := time.Date(2025, time.January, 1, 3, 0, 0, 0, time.UTC)
	require.Equal(t, "31-12-2024", Key(utc.In(bogota), PolicyDate))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" ISO-Week ")
	require.NoError(t, err)
	require.Equal(t, PolicyISOWeek, p)

	p, err = ParsePolicy("date")
	require.NoError(t, err)
	require.Equal(t, PolicyDate, p)

	_, err = ParsePolicy("month")
	require.Error(t, err)
}

func TestMatches(t *testing.T) {
	require.True(t, PolicyDate.Matches("01-10-2025"))
	require.False(t, PolicyDate.Matches("2025-W40"))
	require.True(t, PolicyISOWeek.Matches("2025-W40"))
	require.False(t, PolicyISOWeek.Matches("2025-W4"))
}
