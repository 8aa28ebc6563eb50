package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/triage"
	"github.com/huavcjj/wavemail/internal/service/importance"
	"github.com/huavcjj/wavemail/internal/service/sorter"
	"github.com/huavcjj/wavemail/internal/service/spam"
	"github.com/huavcjj/wavemail/internal/service/summarizer"
	"github.com/huavcjj/wavemail/internal/service/tasks"
	"github.com/huavcjj/wavemail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOracle answers by recognizing which component is asking.
func scriptedOracle() *testutil.Oracle {
	return &testutil.Oracle{Respond: func(system, user string) (string, error) {
		switch {
		case strings.Contains(system, "summarizes emails"):
			return "Report due Friday", nil
		case strings.Contains(system, "extract actionable tasks"):
			return "Quarterly report\n- submit report by Friday", nil
		case strings.Contains(system, "files emails"):
			return "updates", nil
		default:
			return "No", nil
		}
	}}
}

func newService(store mail.Store, o *testutil.Oracle, opts Options) *Service {
	spamFilter := spam.NewFilter()
	classifier := importance.NewClassifier(o)
	return NewService(
		store,
		classifier,
		summarizer.NewSummarizer(o, true),
		tasks.NewExtractor(spamFilter, classifier, o, true),
		sorter.NewSorter(store, classifier, o),
		opts,
	)
}

func scenarioStore() *testutil.Store {
	return testutil.NewStore(
		testutil.NewMessage("m1", "Boss <boss@corp.com>", "URGENT: quarterly report", "Please submit report by Friday."),
		testutil.NewMessage("m2", "friend@example.com", "Lunch menu", "tacos today"),
		testutil.NewMessage("m3", "newsletter@z.com", "Weekly Newsletter", "... unsubscribe ..."),
	)
}

func TestScenarioC(t *testing.T) {
	store := scenarioStore()
	s := newService(store, scriptedOracle(), DefaultOptions())

	todos, err := s.TodoList(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "m1", todos[0].MessageID)
	assert.Contains(t, todos[0].Todo, "submit report by Friday")
	assert.Equal(t, "Quarterly report submit report by Friday", todos[0].Todo)
	assert.Equal(t, "Boss <boss@corp.com>", todos[0].From)

	notes, err := s.Notifications(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "URGENT: quarterly report", notes[0].Subject)
	assert.NotEmpty(t, notes[0].Summary)

	assert.Equal(t, []string{"is:important", "is:important newer_than:1d"}, store.Queries())
}

func TestSummariesOnlyForImportantMail(t *testing.T) {
	o := scriptedOracle()
	s := newService(scenarioStore(), o, DefaultOptions())

	_, err := s.Notifications(context.Background(), 0)
	require.NoError(t, err)

	summaries := 0
	for _, c := range o.Calls() {
		if strings.Contains(c.System, "summarizes emails") {
			summaries++
			assert.Contains(t, c.User, "quarterly report")
		}
	}
	assert.Equal(t, 1, summaries)
}

func TestSummaryFailureDropsItem(t *testing.T) {
	o := &testutil.Oracle{Respond: func(system, user string) (string, error) {
		if strings.Contains(system, "summarizes emails") {
			return "", errors.New("oracle down")
		}
		return "no", nil
	}}
	s := newService(scenarioStore(), o, DefaultOptions())

	notes, err := s.Notifications(context.Background(), 0)

	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func TestSortInbox(t *testing.T) {
	store := scenarioStore()
	store.Results["is:unread"] = []string{"m1", "m2", "m3"}
	s := newService(store, scriptedOracle(), DefaultOptions())

	result, err := s.SortInbox(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Labeled[triage.LabelInbox])
	assert.Equal(t, 2, result.Labeled[triage.LabelUpdates])
	assert.Len(t, store.Mutations(), 2)
	for _, m := range store.Mutations() {
		assert.NotEqual(t, "m1", m.ID)
	}
}

func TestSortInboxCoversEveryUnreadByDefault(t *testing.T) {
	ids := make([]string, 0, 120)
	msgs := make([]*mail.Message, 0, 120)
	for i := range 120 {
		id := fmt.Sprintf("u%d", i)
		ids = append(ids, id)
		msgs = append(msgs, testutil.NewMessage(id, "friend@example.com", "Hello", "see you soon"))
	}
	store := testutil.NewStore(msgs...)
	store.Results["is:unread"] = ids
	s := newService(store, scriptedOracle(), DefaultOptions())

	result, err := s.SortInbox(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 120, result.Processed)
	require.Len(t, store.Limits(), 1)
	assert.LessOrEqual(t, store.Limits()[0], 0)
}

func TestSortInboxHonorsLimit(t *testing.T) {
	store := scenarioStore()
	store.Results["is:unread"] = []string{"m1", "m2", "m3"}
	opts := DefaultOptions()
	opts.SortLimit = 2
	s := newService(store, scriptedOracle(), opts)

	result, err := s.SortInbox(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, []int{2}, store.Limits())
}

func TestFetchErrorsPropagate(t *testing.T) {
	t.Run("search", func(t *testing.T) {
		store := scenarioStore()
		store.SearchErr = errors.New("unreachable")
		s := newService(store, scriptedOracle(), DefaultOptions())

		_, err := s.Notifications(context.Background(), 5)

		var fe *triage.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "is:important newer_than:1d", fe.Query)

		_, err = s.SortInbox(context.Background())
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("get", func(t *testing.T) {
		store := scenarioStore()
		store.GetErr["m2"] = errors.New("quota exceeded")
		s := newService(store, scriptedOracle(), DefaultOptions())

		_, err := s.TodoList(context.Background(), 5)

		var fe *triage.FetchError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("missing message skipped", func(t *testing.T) {
		store := scenarioStore()
		store.Results["is:unread"] = []string{"m1", "gone", "m2"}
		s := newService(store, scriptedOracle(), DefaultOptions())

		emails, err := s.Fetch(context.Background(), "is:unread", 0)

		require.NoError(t, err)
		assert.Len(t, emails, 2)
	})
}

func TestFetchHelpers(t *testing.T) {
	store := scenarioStore()
	s := newService(store, scriptedOracle(), Options{DefaultCount: 2})

	latest, err := s.FetchLatest(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	_, err = s.FetchFromSender(context.Background(), "boss@corp.com", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"in:inbox", "from:boss@corp.com"}, store.Queries())
}

func TestConcurrentViewsKeepOrder(t *testing.T) {
	var msgs []*mail.Message
	for i := range 12 {
		msgs = append(msgs, testutil.NewMessage(fmt.Sprintf("m%02d", i), "boss@corp.com", fmt.Sprintf("item %02d", i), "status"))
	}
	store := testutil.NewStore(msgs...)
	s := newService(store, scriptedOracle(), Options{Concurrency: 4})

	notes, err := s.Notifications(context.Background(), 12)

	require.NoError(t, err)
	require.Len(t, notes, 12)
	for i, n := range notes {
		assert.Equal(t, fmt.Sprintf("m%02d", i), n.MessageID)
	}
}
