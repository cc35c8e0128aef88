package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/casematch/internal/auth"
)

func TestPrintToken(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printToken(&buf, "secret", auth.AdminSubject, time.Hour))

	a, err := auth.New("secret", "")
	require.NoError(t, err)
	sub, err := a.ParseToken(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, auth.AdminSubject, sub)

	assert.Error(t, printToken(&buf, " ", auth.AdminSubject, time.Hour))
	assert.Error(t, printToken(&buf, "secret", auth.AdminSubject, 0))
}

func TestPrintHash(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHash(&buf, "s3cret"))
	hash := strings.TrimSpace(buf.String())

	a, err := auth.New("jwt", hash)
	require.NoError(t, err)
	assert.NoError(t, a.CheckAdminSecret("s3cret"))
	assert.Error(t, a.CheckAdminSecret("wrong"))

	assert.Error(t, printHash(&buf, ""))
}
