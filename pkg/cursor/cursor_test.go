package cursor

import (
	"testing"

	"github.com/cuemby/estore/pkg/estoreerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() Plan {
	return Plan{
		OperatorDescription: "scan(orders by-customer)",
		IndexNames:          []string{"by-customer"},
		SortFields:          []string{"createdAt"},
	}
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	plan := samplePlan()
	tok := Token{
		ScanType:       ScanIndex,
		Reverse:        true,
		LastKey:        []byte("alice/42"),
		RemainingLimit: 17,
		OriginalLimit:  50,
		Fingerprint:    plan.Fingerprint(),
	}
	raw := Encode(tok)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, tok, decoded)
}

func TestEncodeStringDecodeStringRoundTrips(t *testing.T) {
	plan := samplePlan()
	tok := Token{ScanType: ScanFullScan, LastKey: []byte("k"), RemainingLimit: -1, OriginalLimit: -1, Fingerprint: plan.Fingerprint()}
	s := EncodeString(tok)
	decoded, err := DecodeString(s)
	require.NoError(t, err)
	assert.Equal(t, tok, decoded)
}

func TestDecodeStringRejectsInvalidBase64(t *testing.T) {
	_, err := DecodeString("not valid base64!!")
	require.Error(t, err)
	var ce *estoreerr.ContinuationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, estoreerr.ContinuationMalformed, ce.Kind)
}

func TestDecodeRejectsTruncatedToken(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	require.Error(t, err)
	var ce *estoreerr.ContinuationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, estoreerr.ContinuationMalformed, ce.Kind)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	raw := Encode(Token{Fingerprint: samplePlan().Fingerprint(), RemainingLimit: -1, OriginalLimit: -1})
	raw[0] = 99
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestVerifyPlanAcceptsMatchingPlan(t *testing.T) {
	plan := samplePlan()
	tok := Token{Fingerprint: plan.Fingerprint()}
	assert.NoError(t, VerifyPlan(tok, plan))
}

func TestVerifyPlanRejectsMismatchedPlan(t *testing.T) {
	plan := samplePlan()
	tok := Token{Fingerprint: plan.Fingerprint()}

	other := plan
	other.OperatorDescription = "scan(orders by-status)"
	err := VerifyPlan(tok, other)
	require.Error(t, err)
	var ce *estoreerr.ContinuationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, estoreerr.ContinuationPlanMismatch, ce.Kind)
}

func TestFingerprintIsOrderIndependentInNamesAndFields(t *testing.T) {
	a := Plan{OperatorDescription: "x", IndexNames: []string{"a", "b"}, SortFields: []string{"f1", "f2"}}
	b := Plan{OperatorDescription: "x", IndexNames: []string{"b", "a"}, SortFields: []string{"f2", "f1"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintDiffersOnOperatorDescription(t *testing.T) {
	a := Plan{OperatorDescription: "x"}
	b := Plan{OperatorDescription: "y"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
