package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycgate/pkg/domain-errors"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestApplySubmission(t *testing.T) {
	t.Run("moves pending profile under review", func(t *testing.T) {
		p := NewProfile()
		require.NoError(t, p.ApplySubmission(Data{FirstName: "Asha"}, fixedNow))

		assert.Equal(t, StatusUnderReview, p.Status)
		assert.Equal(t, StatusUnderReview, p.Data.Status)
		require.NotNil(t, p.Data.SubmittedAt)
		assert.Equal(t, fixedNow, *p.Data.SubmittedAt)
		assert.False(t, p.Verified)
	})

	t.Run("keeps documents already on file", func(t *testing.T) {
		p := NewProfile()
		p.AppendDocument(Document{DocumentType: DocumentPANCard, StoredName: "a.pdf"})

		incoming := Data{FirstName: "Asha", Documents: []Document{{StoredName: "forged.pdf"}}}
		require.NoError(t, p.ApplySubmission(incoming, fixedNow))

		require.Len(t, p.Data.Documents, 1)
		assert.Equal(t, "a.pdf", p.Data.Documents[0].StoredName)
	})

	t.Run("resubmission after approval revokes verification", func(t *testing.T) {
		p := NewProfile()
		require.NoError(t, p.ApplySubmission(Data{}, fixedNow))
		require.NoError(t, p.ApplyReview(StatusApproved, nil, fixedNow))
		require.True(t, p.Verified)

		require.NoError(t, p.ApplySubmission(Data{}, fixedNow.Add(time.Hour)))
		assert.False(t, p.Verified)
		assert.Nil(t, p.Data.ReviewedAt)
	})
}

func TestApplyReview(t *testing.T) {
	underReview := func(t *testing.T) Profile {
		p := NewProfile()
		require.NoError(t, p.ApplySubmission(Data{}, fixedNow))
		return p
	}

	t.Run("approval sets verified", func(t *testing.T) {
		p := underReview(t)
		require.NoError(t, p.ApplyReview(StatusApproved, ptr("looks good"), fixedNow))

		assert.True(t, p.Verified)
		assert.Equal(t, "looks good", *p.Data.ReviewerNotes)
		assert.Equal(t, fixedNow, *p.Data.ReviewedAt)
	})

	t.Run("rejection never verifies", func(t *testing.T) {
		p := underReview(t)
		require.NoError(t, p.ApplyReview(StatusRejected, nil, fixedNow))
		assert.False(t, p.Verified)
		assert.Nil(t, p.Data.ReviewerNotes)
	})

	t.Run("absent notes keep earlier notes", func(t *testing.T) {
		p := underReview(t)
		require.NoError(t, p.ApplyReview(StatusIncomplete, ptr("need address proof"), fixedNow))
		require.NoError(t, p.ApplyReview(StatusApproved, nil, fixedNow))
		assert.Equal(t, "need address proof", *p.Data.ReviewerNotes)
	})

	t.Run("rejecting an approved profile revokes verification", func(t *testing.T) {
		p := underReview(t)
		require.NoError(t, p.ApplyReview(StatusApproved, nil, fixedNow))
		require.NoError(t, p.ApplyReview(StatusRejected, nil, fixedNow))
		assert.False(t, p.Verified)
	})

	t.Run("pending profile cannot be reviewed", func(t *testing.T) {
		p := NewProfile()
		err := p.ApplyReview(StatusApproved, nil, fixedNow)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		assert.Equal(t, StatusPending, p.Status)
		assert.Nil(t, p.Data)
	})

	t.Run("non-outcome status is a validation error", func(t *testing.T) {
		p := underReview(t)
		err := p.ApplyReview(StatusUnderReview, nil, fixedNow)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestAppendDocumentBeforeSubmission(t *testing.T) {
	p := NewProfile()
	p.AppendDocument(Document{StoredName: "one.png"})
	p.AppendDocument(Document{StoredName: "two.png"})

	assert.Equal(t, StatusPending, p.Status)
	assert.Len(t, p.Documents(), 2)
}
