package submission_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

func TestParseDefaults(t *testing.T) {
	req, err := submission.Parse("", "I broke a vase", "")
	require.NoError(t, err)
	require.Equal(t, submission.TypeSecret, req.ContentType)
	require.Equal(t, "1.00", req.Amount)
	require.Equal(t, int64(100), req.AmountCents())
}

func TestParseRejectsEmptyContent(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := submission.Parse("secret", content, "1.00")
		require.Error(t, err)
		require.True(t, submission.IsValidationError(err))
		require.EqualError(t, err, "Content is required")
	}
}

func TestParseRejectsAmountBelowMinimum(t *testing.T) {
	for _, amount := range []string{"0.99", "0", "-3.00", "0.009"} {
		_, err := submission.Parse("secret", "something", amount)
		require.Error(t, err, "amount %s", amount)
		require.EqualError(t, err, "Minimum amount is $1.00")
	}
}

func TestParseRejectsMalformedAmount(t *testing.T) {
	_, err := submission.Parse("secret", "something", "one dollar")
	require.Error(t, err)
	require.True(t, submission.IsValidationError(err))
}

func TestParseNormalisesAmountToTwoDecimals(t *testing.T) {
	cases := map[string]string{
		"1":     "1.00",
		"1.5":   "1.50",
		"3.141": "3.14",
		"10.00": "10.00",
	}
	for in, want := range cases {
		req, err := submission.Parse("wish", "let it rain", in)
		require.NoError(t, err)
		require.Equal(t, want, req.Amount)
	}
}

func TestParseRejectsUnknownContentType(t *testing.T) {
	_, err := submission.Parse("rant", "something", "1.00")
	require.Error(t, err)
	require.True(t, submission.IsValidationError(err))
}

func TestParseRejectsOversizedContent(t *testing.T) {
	_, err := submission.Parse("confession", strings.Repeat("a", submission.MaxContentLength+1), "1.00")
	require.Error(t, err)
}

func TestTitleAndExcerpt(t *testing.T) {
	req, err := submission.Parse("confession", strings.Repeat("x", 600), "2")
	require.NoError(t, err)
	require.Equal(t, "Confession", req.Title())
	require.Len(t, req.Excerpt(500), 500)
	require.Equal(t, req.Content, req.Excerpt(0))
}
