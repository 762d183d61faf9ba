// Package payment lists the funding and payout methods shared by deposits
// and withdrawals.
package payment

import "strings"

type Method string

const (
	CryptoBTC       Method = "crypto_btc"
	CryptoETH       Method = "crypto_eth"
	CryptoUSDTTRC20 Method = "crypto_usdt_trc20"
	CryptoUSDTERC20 Method = "crypto_usdt_erc20"
	BankTransfer    Method = "bank_transfer"
	BankWire        Method = "bank_wire"
	GiftCardAmazon  Method = "giftcard_amazon"
	GiftCardITunes  Method = "giftcard_itunes"
	GiftCardSteam   Method = "giftcard_steam"
)

var Methods = []Method{
	CryptoBTC, CryptoETH, CryptoUSDTTRC20, CryptoUSDTERC20,
	BankTransfer, BankWire,
	GiftCardAmazon, GiftCardITunes, GiftCardSteam,
}

func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

func (m Method) IsCrypto() bool   { return strings.HasPrefix(string(m), "crypto_") }
func (m Method) IsBank() bool     { return strings.HasPrefix(string(m), "bank_") }
func (m Method) IsGiftCard() bool { return strings.HasPrefix(string(m), "giftcard_") }

// CanPayOut reports whether funds can be sent out through the method.
func (m Method) CanPayOut() bool {
	return m.Valid() && !m.IsGiftCard()
}

// Network names the chain a crypto method settles on.
func (m Method) Network() string {
	switch m {
	case CryptoBTC:
		return "bitcoin"
	case CryptoETH, CryptoUSDTERC20:
		return "erc20"
	case CryptoUSDTTRC20:
		return "trc20"
	}
	return ""
}
