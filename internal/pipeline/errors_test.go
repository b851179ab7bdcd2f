package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "acquisition", KindAcquisition.String())
	assert.Equal(t, "decode", KindDecode.String())
	assert.Equal(t, "no_detection", KindNoDetection.String())
	assert.Equal(t, "recognition", KindRecognition.String())
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "internal", Kind(42).String())
}

func TestNewError_GenericMessages(t *testing.T) {
	e := NewError(KindInternal, "", errors.New("nil map"))
	assert.Equal(t, "An error occurred: nil map", e.Error())

	e = NewError(KindInternal, "", nil)
	assert.Equal(t, "An error occurred", e.Error())

	e = NewError(KindDecode, "Failed to open image: bad header", nil)
	assert.Equal(t, "Failed to open image: bad header", e.Error())
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("wrapped: %w", Errorf(KindRecognition, cause, "stage failed"))

	assert.Equal(t, KindRecognition, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &Error{Kind: KindRecognition})
	assert.NotErrorIs(t, err, ErrNoDetection)

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "stage failed", AsError(err).Message)
	assert.Nil(t, AsError(nil))
	assert.Equal(t, KindInternal, AsError(errors.New("plain")).Kind)
}

func TestResponseJSON(t *testing.T) {
	ok := NewResponse(Result{PlateNumber: "1กข2345"}, nil)
	assert.True(t, ok.OK())
	b, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plate_number":"1กข2345","raw_province":"","province":""}`, string(b))

	failed := NewResponse(Result{PlateNumber: "ignored"}, errors.New("boom"))
	assert.False(t, failed.OK())
	b, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"An error occurred: boom"}`, string(b))

	var back Response
	require.NoError(t, json.Unmarshal([]byte(`{"plate_number":"x","province":"ตาก"}`), &back))
	assert.Equal(t, "x", back.PlateNumber)
	assert.Equal(t, "ตาก", back.Province)
	assert.True(t, back.OK())

	require.NoError(t, json.Unmarshal([]byte(`{"error":"nope"}`), &back))
	assert.Equal(t, "nope", back.Error)
	assert.Empty(t, back.PlateNumber)
}
