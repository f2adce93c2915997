package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
)

func newTestValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func Test_passwordPolicyTag(t *testing.T) {
	commonPwdOnce.Do(loadCommonPasswords)
	require.NotEmpty(t, commonPasswords, "common passwords list not loaded")

	tests := []struct {
		name  string
		pwd   string
		attrs []string // name, username, email
		want  string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Ab1! cdef", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg1", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdef1!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Jane.Doe1", attrs: []string{"Jane", "janedoe1", ""}, want: pwdAttrSimTag},
		{name: "similar to email", pwd: "Jane@spa.io1", attrs: []string{"", "", "jane@spa.io"}, want: pwdAttrSimTag},
		{name: "common", pwd: "P@$$w0rd", want: pwdNoCommonTag},
		{name: "valid", pwd: "LolC@t123", attrs: []string{"Jane Doe", "janedoe", "jane@spa.io"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := append(tt.attrs, "", "", "")
			assert.Equal(t, tt.want, passwordPolicyTag(tt.pwd, attrs[0], attrs[1], attrs[2]))
		})
	}
}

func TestNewUser_structValidation(t *testing.T) {
	validate := newTestValidator()

	nu := NewUser{Name: "Jane", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}
	err := validate.Struct(nu)
	require.Error(t, err)

	fields := map[string]string{}
	for _, fe := range err.(validator.ValidationErrors) {
		fields[fe.Field()] = fe.Tag()
	}
	assert.Equal(t, map[string]string{"username": usernameOrEmailTag, "email": usernameOrEmailTag}, fields)

	nu.Username = "jane_doe"
	assert.NoError(t, validate.Struct(nu))
}

func Test_checkPasswordSimilarity(t *testing.T) {
	usr := User{Name: "Jane Doe", Username: "janedoe", Email: "jane@spa.io"}
	assert.Error(t, checkPasswordSimilarity("Janedoe1!", usr))
	assert.NoError(t, checkPasswordSimilarity("LolC@t123", usr))
}
