package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("mainnet")
	require.NoError(t, err)
	require.Equal(t, Mainnet, n)

	_, err = ParseNetwork("devnet")
	require.Error(t, err)
}

func TestValidAccountName(t *testing.T) {
	require.True(t, ValidAccountName("alice_01"))
	require.True(t, ValidAccountName("a-b"))
	require.False(t, ValidAccountName("a"))
	require.False(t, ValidAccountName("Alice"))
	require.False(t, ValidAccountName("al.ice"))
}

func TestCaller_Owns(t *testing.T) {
	c := Caller{Kind: CallerFederated, Identifier: "alice@example.com"}
	require.True(t, c.Owns(" Alice@Example.com "))
	require.False(t, c.Owns("bob@example.com"))
	require.False(t, Caller{}.Owns(""))
}
