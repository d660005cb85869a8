package ptosc_test

import (
	"testing"

	. "github.com/pseudomuto/departure/pkg/ptosc"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		expected []Option
	}{
		{name: "empty", args: "  ", expected: nil},
		{
			name: "flags and values",
			args: "--chunk-time=1 --dry-run --max-lag 5",
			expected: []Option{
				{Name: "--chunk-time", Value: "1"},
				{Name: "--dry-run"},
				{Name: "--max-lag", Value: "5"},
			},
		},
		{
			name: "quoted values",
			args: `--max-load "Threads_running=50" --critical-load='Threads_running=100' --set-vars="a=1, b=2"`,
			expected: []Option{
				{Name: "--max-load", Value: "Threads_running=50"},
				{Name: "--critical-load", Value: "Threads_running=100"},
				{Name: "--set-vars", Value: "a=1, b=2"},
			},
		},
		{
			name:     "escaped quote",
			args:     `--comment "say \"hi\""`,
			expected: []Option{{Name: "--comment", Value: `say "hi"`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseOptions(tt.args)
			require.NoError(t, err)
			require.Equal(t, tt.expected, opts)
		})
	}

	t.Run("errors", func(t *testing.T) {
		_, err := ParseOptions("chunk-time=1")
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)

		_, err = ParseOptions(`--max-load "unterminated`)
		require.Error(t, err)
	})
}

func TestOptionString(t *testing.T) {
	require.Equal(t, "--execute", Option{Name: "--execute"}.String())
	require.Equal(t, "--chunk-time=1", Option{Name: "--chunk-time", Value: "1"}.String())
}

func TestMergeOptions(t *testing.T) {
	merged := MergeOptions(
		DefaultOptions,
		[]Option{{Name: "--chunk-time", Value: "1"}, {Name: "--alter-foreign-keys-method", Value: "drop_swap"}},
		[]Option{{Name: "--chunk-time", Value: "2"}},
	)

	require.Equal(t, []Option{
		{Name: "--execute"},
		{Name: "--statistics"},
		{Name: "--alter-foreign-keys-method", Value: "drop_swap"},
		{Name: "--no-check-alter"},
		{Name: "--chunk-time", Value: "2"},
	}, merged)
}
