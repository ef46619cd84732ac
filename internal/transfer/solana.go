package transfer

import (
	"context"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/mr-tron/base58"
	"github.com/spf13/cast"
)

// solanaPublicKeyLen ed25519 公钥字节数
const solanaPublicKeyLen = 32

// SolanaMethod 校验钱包地址，但托管转账尚未接入，始终转人工处理
type SolanaMethod struct{}

// NewSolanaMethod 创建 Solana 打款方式
func NewSolanaMethod() *SolanaMethod {
	return &SolanaMethod{}
}

// Name 实现 Method
func (m *SolanaMethod) Name() model.PayoutMethod {
	return model.PayoutMethodSolana
}

// ValidateSolanaAddress 校验 base58 编码的 32 字节公钥
func ValidateSolanaAddress(address string) bool {
	if address == "" {
		return false
	}
	raw, err := base58.Decode(address)
	if err != nil {
		return false
	}
	return len(raw) == solanaPublicKeyLen
}

// Transfer 实现 Method
func (m *SolanaMethod) Transfer(_ context.Context, req Request) (*Result, error) {
	wallet := req.SolanaWalletAddress
	if wallet == "" {
		wallet = cast.ToString(req.Destination["wallet_address"])
	}
	if wallet == "" {
		return Failure("Dealer has no Solana wallet address configured"), nil
	}
	if !ValidateSolanaAddress(wallet) {
		return Failure("Invalid Solana wallet address: %s", wallet), nil
	}
	return Failure("Solana payouts are not yet supported; requires manual processing"), nil
}
