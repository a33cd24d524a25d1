package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodels "kycgate/internal/auth/models"
	userstore "kycgate/internal/auth/store/user"
	"kycgate/internal/kyc/blob"
	"kycgate/internal/kyc/lock"
	kyc "kycgate/internal/kyc/models"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/platform/audit/publishers/compliance"
	auditmemory "kycgate/pkg/platform/audit/store/memory"
	"kycgate/pkg/requestcontext"
	"kycgate/pkg/testutil"
)

type workflow struct {
	users   *userstore.InMemoryUserStore
	blobs   *blob.MemoryStore
	service *Service
	user    *authmodels.User
	ctx     context.Context
}

func newWorkflow(t *testing.T) *workflow {
	t.Helper()
	users := userstore.New()
	blobs := blob.NewMemoryStore()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	user, err := authmodels.NewUser("asha@example.com", "hash", "Asha Rao", now)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), user))

	svc := New(users, compliance.New(auditmemory.NewInMemoryStore()), blobs, lock.NewMemory())
	return &workflow{
		users:   users,
		blobs:   blobs,
		service: svc,
		user:    user,
		ctx:     requestcontext.WithTime(context.Background(), now),
	}
}

func (w *workflow) actions(t *testing.T) []audit.Action {
	t.Helper()
	entries, err := w.service.AuditTrail(w.ctx, w.user.ID)
	require.NoError(t, err)
	out := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestSubmissionLifecycle(t *testing.T) {
	testutil.Given(t, "a freshly registered user", func(t *testing.T) {
		w := newWorkflow(t)

		testutil.When(t, "a valid submission is followed by approval", func(t *testing.T) {
			data := validData()
			_, err := w.service.Submit(w.ctx, w.user.ID, &data)
			require.NoError(t, err)
			found, err := w.service.Review(w.ctx, w.user.ID, kyc.StatusApproved, nil)
			require.NoError(t, err)
			require.True(t, found)

			testutil.Then(t, "the user is approved and verified with two audit entries", func(t *testing.T) {
				view, err := w.service.GetStatus(w.ctx, w.user.ID)
				require.NoError(t, err)
				assert.Equal(t, kyc.StatusApproved, view.Status)
				assert.True(t, view.Verified)
				assert.Equal(t, []audit.Action{audit.ActionKYCSubmitted, audit.ActionStatusUpdated}, w.actions(t))
			})
		})

		testutil.When(t, "the approved user resubmits", func(t *testing.T) {
			data := validData()
			data.City = "Mysuru"
			_, err := w.service.Submit(w.ctx, w.user.ID, &data)
			require.NoError(t, err)

			testutil.Then(t, "verification is revoked until the next review", func(t *testing.T) {
				view, err := w.service.GetStatus(w.ctx, w.user.ID)
				require.NoError(t, err)
				assert.Equal(t, kyc.StatusUnderReview, view.Status)
				assert.False(t, view.Verified)
				assert.Equal(t, "Mysuru", view.Data.City)
			})
		})
	})
}

func TestInvalidSubmissionLeavesNoTrace(t *testing.T) {
	w := newWorkflow(t)
	data := validData()
	data.PANNumber = "ABCD1234F"

	_, err := w.service.Submit(w.ctx, w.user.ID, &data)
	require.Error(t, err)
	assert.Contains(t, dErrors.DetailsOf(err), "Invalid PAN number format")

	view, err := w.service.GetStatus(w.ctx, w.user.ID)
	require.NoError(t, err)
	assert.Equal(t, kyc.StatusPending, view.Status)
	assert.Nil(t, view.Data)
	assert.Empty(t, w.actions(t))
}

func TestDocumentsSurviveResubmission(t *testing.T) {
	w := newWorkflow(t)

	_, err := w.service.UploadDocument(w.ctx, w.user.ID, kyc.UploadRequest{
		DocumentType: "government_id", Filename: "id.docx", Content: strings.NewReader("doc"),
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedMedia))

	res, err := w.service.UploadDocument(w.ctx, w.user.ID, kyc.UploadRequest{
		DocumentType: "government_id", Filename: "id.pdf", Content: strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.StoredName, ".pdf"))
	assert.Equal(t, 1, w.blobs.Len())

	data := validData()
	_, err = w.service.Submit(w.ctx, w.user.ID, &data)
	require.NoError(t, err)

	view, err := w.service.GetStatus(w.ctx, w.user.ID)
	require.NoError(t, err)
	require.Len(t, view.Data.Documents, 1)
	assert.Equal(t, res.StoredName, view.Data.Documents[0].StoredName)
	assert.Equal(t, []audit.Action{audit.ActionDocumentUploaded, audit.ActionKYCSubmitted}, w.actions(t))
}

func TestIllegalTransitionWritesNoAudit(t *testing.T) {
	w := newWorkflow(t)
	data := validData()
	_, err := w.service.Submit(w.ctx, w.user.ID, &data)
	require.NoError(t, err)
	_, err = w.service.Review(w.ctx, w.user.ID, kyc.StatusRejected, nil)
	require.NoError(t, err)

	_, err = w.service.Review(w.ctx, w.user.ID, kyc.StatusApproved, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	assert.Len(t, w.actions(t), 2)
}

func TestConcurrentWritesNeverLoseDocuments(t *testing.T) {
	w := newWorkflow(t)
	const uploads = 8

	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.service.UploadDocument(w.ctx, w.user.ID, kyc.UploadRequest{
				DocumentType: "income_proof", Filename: "slip.png", Content: strings.NewReader("png"),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		data := validData()
		_, err := w.service.Submit(w.ctx, w.user.ID, &data)
		if err != nil {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		}
	}()
	wg.Wait()

	stored, err := w.users.FindByID(w.ctx, w.user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Documents(), uploads)
}

func TestGetStatusIsRepeatable(t *testing.T) {
	w := newWorkflow(t)
	data := validData()
	_, err := w.service.Submit(w.ctx, w.user.ID, &data)
	require.NoError(t, err)

	first, err := w.service.GetStatus(w.ctx, w.user.ID)
	require.NoError(t, err)
	second, err := w.service.GetStatus(w.ctx, w.user.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []audit.Action{audit.ActionKYCSubmitted}, w.actions(t))
}
