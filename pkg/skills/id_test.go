package skills

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSkillID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SkillID
		wantErr bool
	}{
		{name: "kebab case", input: "web-framework-react", want: "web-framework-react"},
		{name: "trims whitespace", input: "  api-hono\n", want: "api-hono"},
		{name: "dots and underscores", input: "lang.go_testing", want: "lang.go_testing"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "uppercase", input: "React", wantErr: true},
		{name: "leading dash", input: "-react", wantErr: true},
		{name: "reserved archive prefix", input: "_archived", wantErr: true},
		{name: "path separator", input: "web/react", wantErr: true},
		{name: "too long", input: strings.Repeat("a", maxSkillIDLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSkillID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var parseErr *ParseError
				assert.True(t, errors.As(err, &parseErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSkillIDs(t *testing.T) {
	ids, err := ParseSkillIDs([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []SkillID{"a", "b"}, SortIDs(ids))

	_, err = ParseSkillIDs([]string{"ok", "Not OK"})
	assert.Error(t, err)
}
