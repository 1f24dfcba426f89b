package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
)

func setOf(emails ...string) *model.RawContactSet {
	s := model.NewRawContactSet()
	for _, e := range emails {
		s.AddEmail(e, "https://acme.com/contact")
	}
	return s
}

func emailsOf(cs []model.RankedContact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Email
	}
	return out
}

func TestRank_NamedBeforeRole(t *testing.T) {
	r := NewRanker(config.RankConfig{})
	got := r.Rank("acme.com", setOf("info@acme.com", "jane.doe@acme.com"))

	require.Len(t, got, 2)
	assert.Equal(t, "jane.doe@acme.com", got[0].Email)
	assert.Equal(t, 90, got[0].Confidence)
	assert.False(t, got[0].Role)
	assert.Equal(t, "info@acme.com", got[1].Email)
	assert.Equal(t, 70, got[1].Confidence)
	assert.True(t, got[1].Role)
	assert.Equal(t, "https://acme.com/contact", got[0].SourceURL)
}

func TestRank_SameDomainFirst(t *testing.T) {
	r := NewRanker(config.RankConfig{})
	got := r.Rank("www.acme.com", setOf("jonathan@gmail.com", "info@mail.acme.com", "bob@acme.com"))

	assert.Equal(t, []string{"bob@acme.com", "info@mail.acme.com", "jonathan@gmail.com"}, emailsOf(got))
}

func TestRank_LongerLocalPartThenLexical(t *testing.T) {
	r := NewRanker(config.RankConfig{MaxEmailsPerDomain: 10})
	got := r.Rank("acme.com", setOf("al@acme.com", "bob@acme.com", "amy@acme.com", "jennifer@acme.com"))

	assert.Equal(t, []string{"jennifer@acme.com", "amy@acme.com", "bob@acme.com", "al@acme.com"}, emailsOf(got))
}

func TestRank_Bounded(t *testing.T) {
	r := NewRanker(config.RankConfig{})
	got := r.Rank("acme.com", setOf(
		"a1@acme.com", "b22@acme.com", "c333@acme.com", "d4444@acme.com", "info@acme.com",
	))
	assert.Len(t, got, 3)

	r = NewRanker(config.RankConfig{MaxEmailsPerDomain: 1})
	assert.Len(t, r.Rank("acme.com", setOf("a@acme.com", "b@acme.com")), 1)
}

func TestRank_Deterministic(t *testing.T) {
	r := NewRanker(config.RankConfig{})
	set := setOf("sales@acme.com", "zed@acme.com", "ann@acme.com", "office@acme.com", "x@other.com")
	first := r.Rank("acme.com", set)
	for range 10 {
		assert.Equal(t, first, r.Rank("acme.com", set))
	}
	assert.Equal(t, []string{"ann@acme.com", "zed@acme.com", "office@acme.com"}, emailsOf(first))
}

func TestRank_Empty(t *testing.T) {
	r := NewRanker(config.RankConfig{})
	assert.Nil(t, r.Rank("acme.com", nil))
	assert.Nil(t, r.Rank("acme.com", model.NewRawContactSet()))
}

func TestRank_CustomConfidence(t *testing.T) {
	r := NewRanker(config.RankConfig{NamedConfidence: 80, RoleConfidence: 40})
	got := r.Rank("acme.com", setOf("jane@acme.com", "sales@acme.com"))
	require.Len(t, got, 2)
	assert.Equal(t, 80, got[0].Confidence)
	assert.Equal(t, 40, got[1].Confidence)
}
