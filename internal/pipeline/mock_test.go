package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/leads-cli/internal/model"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Check(ctx context.Context, domain string) model.VerificationStatus {
	args := m.Called(ctx, domain)
	return args.Get(0).(model.VerificationStatus)
}

type staticResolver struct {
	site model.ResolvedSite
}

func (s staticResolver) Resolve(context.Context, string) model.ResolvedSite {
	return s.site
}

type staticFetcher struct {
	pages map[string]*model.Page
}

func (s staticFetcher) FetchAll(context.Context, model.ResolvedSite) map[string]*model.Page {
	return s.pages
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) ProcessSeed(ctx context.Context, seed model.Seed) ([]model.LeadRecord, model.SiteResult, error) {
	args := m.Called(ctx, seed)
	var recs []model.LeadRecord
	if v := args.Get(0); v != nil {
		recs = v.([]model.LeadRecord)
	}
	return recs, args.Get(1).(model.SiteResult), args.Error(2)
}
