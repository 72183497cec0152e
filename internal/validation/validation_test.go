package validation

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geocoder89/coursehub/internal/apperr"
)

func fieldRules(t *testing.T, err error) map[string]string {
	t.Helper()

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperr.Validation, ae.Kind)

	out := map[string]string{}
	for _, f := range ae.Fields {
		require.NotEmpty(t, f.Message, "field %s has no message", f.Field)
		out[f.Field] = f.Rule
	}
	return out
}

func TestSignUp_Valid(t *testing.T) {
	got, err := SignUp(SignUpInput{
		FirstName: " Ann ",
		LastName:  "Lee",
		Email:     "Ann@X.com",
		Password:  "secret1",
	})

	require.NoError(t, err)
	require.Equal(t, "Ann", got.FirstName)
	require.Equal(t, "ann@x.com", got.Email)
	require.Equal(t, "secret1", got.Password)
}

func TestSignUp_Failures(t *testing.T) {
	cases := []struct {
		name  string
		in    SignUpInput
		field string
		rule  string
	}{
		{
			name:  "short password",
			in:    SignUpInput{FirstName: "A", LastName: "B", Email: "a@b.co", Password: "12345"},
			field: "password",
			rule:  "min",
		},
		{
			// 40 characters, 80 bytes
			name:  "multi-byte password over bcrypt limit",
			in:    SignUpInput{FirstName: "A", LastName: "B", Email: "a@b.co", Password: strings.Repeat("é", 40)},
			field: "password",
			rule:  "maxbytes",
		},
		{
			name:  "bad email",
			in:    SignUpInput{FirstName: "A", LastName: "B", Email: "not-an-email", Password: "123456"},
			field: "email",
			rule:  "email",
		},
		{
			name:  "blank first name",
			in:    SignUpInput{FirstName: "   ", LastName: "B", Email: "a@b.co", Password: "123456"},
			field: "firstName",
			rule:  "required",
		},
		{
			name:  "missing last name",
			in:    SignUpInput{FirstName: "A", Email: "a@b.co", Password: "123456"},
			field: "lastName",
			rule:  "required",
		},
		{
			name:  "password over bcrypt limit",
			in:    SignUpInput{FirstName: "A", LastName: "B", Email: "a@b.co", Password: strings.Repeat("x", 73)},
			field: "password",
			rule:  "max",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SignUp(tc.in)
			rules := fieldRules(t, err)
			require.Equal(t, tc.rule, rules[tc.field], "rules: %v", rules)
		})
	}
}

func TestSignUp_ReportsEveryField(t *testing.T) {
	_, err := SignUp(SignUpInput{})
	rules := fieldRules(t, err)

	require.Len(t, rules, 4)
	for _, f := range []string{"firstName", "lastName", "email", "password"} {
		require.Equal(t, "required", rules[f])
	}
}

func TestLogin(t *testing.T) {
	got, err := Login(LoginInput{Email: " A@B.CO ", Password: "x"})
	require.NoError(t, err)
	require.Equal(t, "a@b.co", got.Email)

	_, err = Login(LoginInput{Email: "a@b.co"})
	require.Equal(t, "required", fieldRules(t, err)["password"])
}

func TestLookup_OnlyRequiresAnID(t *testing.T) {
	got, err := Lookup(LookupInput{UserID: " does-not-exist "})
	require.NoError(t, err)
	require.Equal(t, "does-not-exist", got.UserID)

	_, err = Lookup(LookupInput{})
	require.Equal(t, "required", fieldRules(t, err)["userId"])
}

func TestMessage(t *testing.T) {
	require.Equal(t, "must be at least 6 characters", Message("min", "6", reflect.String))
	require.Equal(t, "must be at least 1", Message("min", "1", reflect.Int))
	require.Equal(t, "must be one of a, b", Message("oneof", "a b", reflect.String))
}

func TestSignUp_PasswordAtByteLimit(t *testing.T) {
	_, err := SignUp(SignUpInput{FirstName: "A", LastName: "B", Email: "a@b.co", Password: strings.Repeat("é", 36)})
	require.NoError(t, err)

	require.Equal(t, "must be at most 72 bytes", Message("maxbytes", "72", reflect.String))
}
