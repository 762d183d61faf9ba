package cryptodeposit

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/zjoart/varlixo/pkg/apperr"
	"golang.org/x/crypto/ripemd160"
)

type Network string

const (
	NetworkBitcoin Network = "bitcoin"
	NetworkERC20   Network = "erc20"
	NetworkTRC20   Network = "trc20"
	NetworkBEP20   Network = "bep20"
)

var minConfirmations = map[Network]int{
	NetworkBitcoin: 3,
	NetworkERC20:   12,
	NetworkBEP20:   15,
	NetworkTRC20:   20,
}

// Asset is a currency on one network that we can issue addresses for.
type Asset struct {
	Currency         string  `json:"currency"`
	Network          Network `json:"network"`
	MinConfirmations int     `json:"min_confirmations"`
}

var supported = []struct {
	currency string
	network  Network
}{
	{"BTC", NetworkBitcoin},
	{"ETH", NetworkERC20},
	{"USDT", NetworkERC20},
	{"USDT", NetworkTRC20},
	{"TRX", NetworkTRC20},
	{"BNB", NetworkBEP20},
	{"USDT", NetworkBEP20},
}

// SupportedAssets lists every currency/network pair in a stable order.
func SupportedAssets() []Asset {
	assets := make([]Asset, 0, len(supported))
	for _, s := range supported {
		assets = append(assets, Asset{Currency: s.currency, Network: s.network, MinConfirmations: minConfirmations[s.network]})
	}
	return assets
}

// LookupAsset validates a currency/network pair, case-insensitively.
func LookupAsset(currency, network string) (Asset, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	net := Network(strings.ToLower(strings.TrimSpace(network)))
	for _, s := range supported {
		if s.currency == currency && s.network == net {
			return Asset{Currency: currency, Network: net, MinConfirmations: minConfirmations[net]}, nil
		}
	}
	return Asset{}, apperr.Validation(fmt.Sprintf("unsupported currency %s on network %s", currency, network))
}

// KeyPair is a freshly generated deposit address with its raw private key.
type KeyPair struct {
	Address    string
	PrivateKey []byte
}

func GenerateAddress(network Network) (*KeyPair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	address, err := addressFor(network, &key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Address: address, PrivateKey: crypto.FromECDSA(key)}, nil
}

func addressFor(network Network, pub *ecdsa.PublicKey) (string, error) {
	switch network {
	case NetworkERC20, NetworkBEP20:
		return crypto.PubkeyToAddress(*pub).Hex(), nil
	case NetworkTRC20:
		return tronAddress(pub), nil
	case NetworkBitcoin:
		return bitcoinAddress(pub), nil
	}
	return "", apperr.Validation(fmt.Sprintf("unsupported network %s", network))
}

// tronAddress is the keccak account hash behind a 0x41 prefix, base58check encoded.
func tronAddress(pub *ecdsa.PublicKey) string {
	hash := crypto.Keccak256(crypto.FromECDSAPub(pub)[1:])
	return base58Check(0x41, hash[12:])
}

// bitcoinAddress is a P2PKH address over the compressed public key.
func bitcoinAddress(pub *ecdsa.PublicKey) string {
	sha := sha256.Sum256(crypto.CompressPubkey(pub))
	h := ripemd160.New()
	h.Write(sha[:])
	return base58Check(0x00, h.Sum(nil))
}

func base58Check(version byte, payload []byte) string {
	full := append([]byte{version}, payload...)
	first := sha256.Sum256(full)
	second := sha256.Sum256(first[:])
	return base58.Encode(append(full, second[:4]...))
}
