package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordPolicyViolation(t *testing.T) {
	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{"too short", "aB3!", nil, pwdMinLenTag},
		{"longest accepted", strings.Repeat("a1", PwdMaxLen/2), nil, ""},
		{"too long", strings.Repeat("a1", PwdMaxLen/2) + "x", nil, pwdMaxLenTag},
		{"multi-byte runes count as bytes", strings.Repeat("é", PwdMaxLen/2+1), nil, pwdMaxLenTag},
		{"whitespace", "Zq7! Xv2#Wk", nil, pwdNoSpaceTag},
		{"all numeric", "12345678", nil, pwdNotAllNumTag},
		{"similar to name", "jane.doe", []string{"Jane Doe", "jd@atomcode.dev"}, pwdAttrSimTag},
		{"ok", "Zq7!Xv2#Wk", []string{"Jane", "jane@atomcode.dev"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PasswordPolicyViolation(tt.pwd, tt.attrs...))
		})
	}
}
