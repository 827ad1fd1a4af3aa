package wallet

import (
	"fmt"

	"github.com/nova-sdk/novakeeper/internal/client/models"
)

// Storage keys read by the wallet stack on its next load. The formats must
// match what the wallet libraries expect byte for byte.
const (
	keystorePrefix    = "near-api-js:keystore:"
	selectedWalletKey = "near-wallet-selector:selectedWalletId"
	authKeySuffix     = "_wallet_auth_key"
)

// InjectedWalletID marks a selection made by injecting a custody key.
const InjectedWalletID = "nova-keystore"

func keystoreKey(accountID string, network models.Network) string {
	return fmt.Sprintf("%s%s:%s", keystorePrefix, accountID, network)
}

func authKey(appPrefix string) string {
	return appPrefix + authKeySuffix
}

// authRecord is the JSON stored under <prefix>_wallet_auth_key.
type authRecord struct {
	AccountID string   `json:"accountId"`
	AllKeys   []string `json:"allKeys"`
}
