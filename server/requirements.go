package server

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dongruixiao/cyberbuddha/chains"
	"github.com/dongruixiao/cyberbuddha/types"
)

// paymentTimeoutSeconds bounds the validity window the server accepts for
// a payment authorization.
const paymentTimeoutSeconds = 300

// buildRequirements constructs the payment requirements for one wish. The
// result is a pure function of its inputs: the same request must yield
// byte-identical requirements on the 402 challenge and on the later
// verify/settle calls, because the server never trusts a client-echoed
// copy.
func buildRequirements(network string, chain chains.Config, amount decimal.Decimal, resource, recipient string) types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:            types.SchemeExact,
		Network:           network,
		MaxAmountRequired: types.USDToAtomicUnits(amount),
		Resource:          resource,
		Description:       fmt.Sprintf("make a wish (%s USDC)", amount.String()),
		MimeType:          "application/json",
		PayTo:             recipient,
		MaxTimeoutSeconds: paymentTimeoutSeconds,
		Asset:             chain.USDCAddress,
		Extra: map[string]string{
			"name":    chain.EIP3009Name,
			"version": chain.EIP3009Version,
		},
	}
}
