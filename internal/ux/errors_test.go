package ux

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/errors"
)

func TestNewErrorWithSuggestion(t *testing.T) {
	assert.Nil(t, NewErrorWithSuggestion(nil, "some suggestion"))

	err := NewErrorWithSuggestion(stderrors.New("something failed"), "try this fix")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "something failed")
	assert.Contains(t, err.Error(), "try this fix")

	bare := NewErrorWithSuggestion(stderrors.New("something failed"), "")
	assert.Equal(t, "something failed", bare.Error())
}

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid credentials", errors.NewInvalidCredentialsError(nil), "vibesub signup"},
		{"session", errors.NewSessionEstablishmentError("rejected", nil), "api.base_url"},
		{"usage", errors.NewFetchFailedError(401), "session may have expired"},
		{"api key", stderrors.New("identity: 400 API key not valid. Please pass a valid API key."), "identity.api_key"},
		{"contract", stderrors.New("GET /api/tasks/limit/info: status 200 violates API contract: bad"), "api.validate_contract"},
		{"permission", stderrors.New("open /home/u/.vibesub/cookies.json: permission denied"), "state_dir"},
		{"network", stderrors.New("dial tcp 127.0.0.1:443: connect: connection refused"), "api.base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enhanced := EnhanceError(tt.err)
			assert.Contains(t, enhanced.Error(), tt.want)
			assert.ErrorIs(t, enhanced, tt.err)
		})
	}
}

func TestEnhanceErrorPassthrough(t *testing.T) {
	assert.Nil(t, EnhanceError(nil))

	plain := stderrors.New("something odd")
	assert.Same(t, plain, EnhanceError(plain))

	suggested := errors.NewConfigKeyError("nope")
	assert.Equal(t, error(suggested), EnhanceError(suggested))
}

func TestFormatError(t *testing.T) {
	assert.Nil(t, FormatError(nil, "ctx"))

	err := FormatError(stderrors.New("connection refused"), "fetch usage")
	assert.Contains(t, err.Error(), "fetch usage: connection refused")
	assert.Contains(t, err.Error(), "Suggestion")
}

func TestReported(t *testing.T) {
	assert.Nil(t, Reported(nil))
	assert.False(t, IsReported(nil))
	assert.False(t, IsReported(stderrors.New("plain")))

	base := errors.New(errors.ErrCodeInvalidCredentials, "wrong password")
	err := Reported(base)
	require.Error(t, err)
	assert.True(t, IsReported(err))
	assert.Equal(t, base.Error(), err.Error())
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCredentials))
	assert.ErrorIs(t, err, base)
}
