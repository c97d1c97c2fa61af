package utils

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
)

// MethodStellar is the payment_method value whose transaction ids are checked against Horizon.
const MethodStellar = "stellar"

var ErrPaymentNotVerified = errors.New("payment could not be verified")

// PaymentVerifier confirms that an externally settled payment actually happened.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, method, transactionID string) error
}

type horizonAPI interface {
	TransactionDetail(txHash string) (hProtocol.Transaction, error)
}

type StellarVerifier struct {
	client horizonAPI
}

func NewStellarVerifier(horizonURL string) *StellarVerifier {
	return &StellarVerifier{
		client: &horizonclient.Client{HorizonURL: horizonURL},
	}
}

// VerifyPayment looks the transaction hash up on Horizon and requires it to have succeeded.
// Methods other than stellar are accepted as is.
func (s *StellarVerifier) VerifyPayment(ctx context.Context, method, transactionID string) error {
	if !strings.EqualFold(method, MethodStellar) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !isTransactionHash(transactionID) {
		return fmt.Errorf("%w: transaction_id must be a 64 character hex hash", ErrPaymentNotVerified)
	}

	tx, err := s.client.TransactionDetail(strings.ToLower(transactionID))
	if err != nil {
		if hErr := horizonclient.GetError(err); hErr != nil && hErr.Problem.Status == 404 {
			return fmt.Errorf("%w: transaction %s not found", ErrPaymentNotVerified, transactionID)
		}
		return fmt.Errorf("failed to load transaction: %w", err)
	}
	if !tx.Successful {
		return fmt.Errorf("%w: transaction %s did not succeed", ErrPaymentNotVerified, transactionID)
	}
	return nil
}

func isTransactionHash(id string) bool {
	if len(id) != 64 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
