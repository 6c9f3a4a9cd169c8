package tx

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Classifier reports whether a simulation failure is transient, i.e. worth retrying once
// the local clock says the window is open.
type Classifier func(err error) bool

var notOpenPattern = regexp.MustCompile(`(?i)(sale|claim)\s+(is\s+)?not\s+open|sale\s+closed`)

// NotOpenYet matches the "window not open yet" reverts the sale and claim contracts emit
// while the block timestamp lags the local clock.
func NotOpenYet(err error) bool {
	if err == nil {
		return false
	}
	return notOpenPattern.MatchString(err.Error()) || notOpenPattern.MatchString(RevertReason(err))
}

// PatternClassifier builds a Classifier from a custom expression.
func PatternClassifier(expr string) (Classifier, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return func(err error) bool {
		return err != nil && (re.MatchString(err.Error()) || re.MatchString(RevertReason(err)))
	}, nil
}

// RevertReason extracts the Error(string) reason from an eth_call failure, falling back to
// the message with the node's "execution reverted" prefix trimmed.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		msg = strings.TrimPrefix(msg[i+len("execution reverted"):], ":")
	}
	return strings.TrimSpace(msg)
}
