package graph

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsmith-labs/parallel/pkg/task"
)

func registryWith(names ...string) *task.Registry {
	r := task.NewRegistry()
	for _, n := range names {
		_ = r.Register(n, func(p any) any { return nil })
	}
	return r
}

func TestBuildSingleThread(t *testing.T) {
	r := registryWith("A", "B", "C")
	doc := `{
		"name": "s1",
		"threads": { "T1": [ {"task":"A"}, {"task":"B"}, {"task":"C"} ] }
	}`

	sched, err := BuildFromText(doc, r)
	require.NoError(t, err)
	require.Len(t, sched.Threads, 1)

	thread := sched.Threads["T1"]
	require.Len(t, thread.Tasks, 3)
	assert.Equal(t, "A", thread.Tasks[0].Name)
	assert.Equal(t, "B", thread.Tasks[1].Name)
	assert.Equal(t, "C", thread.Tasks[2].Name)
	assert.False(t, thread.Tasks[0].Dependent)
}

func TestBuildCrossThreadDependency(t *testing.T) {
	r := registryWith("tell", "laugh")
	doc := `{
		"name": "s2",
		"threads": {
			"S": [ {"task":"tell"} ],
			"L": [ {"task":"laugh", "wait":"S:tell"} ]
		}
	}`

	sched, err := BuildFromText(doc, r)
	require.NoError(t, err)

	laugh := sched.Threads["L"].Tasks[0]
	require.True(t, laugh.Dependent)
	assert.Equal(t, "S", laugh.WaitThread)
	assert.Equal(t, "tell", laugh.WaitTask)

	tell := sched.Threads["S"].Tasks[0]
	assert.True(t, tell.Dependency)
	assert.Equal(t, 1, tell.Dependencies)
	assert.Same(t, tell.Monitor, tell.Monitor)
}

func TestBuildRejectsUnresolvedTask(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"s","threads":{"T":[{"task":"missing"}]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrUnresolvedTask)
}

func TestBuildRejectsEmptyThreads(t *testing.T) {
	r := registryWith()
	doc := `{"name":"s","threads":{}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrEmptyThreads)
}

func TestBuildRejectsEmptyTaskList(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"s","threads":{"T":[]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrEmptyTaskList)
}

func TestBuildRejectsDuplicateTaskNameInThread(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"s","threads":{"T":[{"task":"A"},{"task":"A"}]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrDuplicateTaskName)
}

func TestBuildRejectsMalformedWait(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"s","threads":{"T":[{"task":"A","wait":"nocolon"}]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrMalformedWait)
}

func TestBuildRejectsUnknownWaitThread(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"s","threads":{"T":[{"task":"A","wait":"Ghost:task"}]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrUnknownWaitThread)
}

func TestBuildRejectsUnknownWaitTask(t *testing.T) {
	r := registryWith("A", "B")
	doc := `{
		"name":"s",
		"threads":{
			"T1":[{"task":"A"}],
			"T2":[{"task":"B","wait":"T1:ghost"}]
		}
	}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrUnknownWaitTask)
}

func TestBuildRejectsSelfDependency(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"s","threads":{"T":[{"task":"A","wait":"T:A"}]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrSelfDependency)
}

func TestBuildRejectsForwardWaitWithinSameThread(t *testing.T) {
	r := registryWith("A", "B")
	doc := `{
		"name":"s",
		"threads": { "T": [ {"task":"A","wait":"T:B"}, {"task":"B"} ] }
	}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestBuildAcceptsBackwardWaitWithinSameThread(t *testing.T) {
	r := registryWith("A", "B")
	doc := `{
		"name":"s",
		"threads": { "T": [ {"task":"A"}, {"task":"B","wait":"T:A"} ] }
	}`

	sched, err := BuildFromText(doc, r)
	require.NoError(t, err)
	assert.True(t, sched.Threads["T"].Tasks[1].Dependent)
}

func TestBuildRejectsCycle(t *testing.T) {
	r := registryWith("A", "B")
	doc := `{
		"name":"s",
		"threads":{
			"T1":[{"task":"A","wait":"T2:B"}],
			"T2":[{"task":"B","wait":"T1:A"}]
		}
	}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestBuildRejectsUnknownMainThread(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"s","main_thread":"Ghost","threads":{"T":[{"task":"A"}]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrUnknownMainThread)
}

func TestBuildRejectsTooManyThreads(t *testing.T) {
	threads := map[string]any{}
	for i := 0; i < MaxThreads+1; i++ {
		name := "T" + string(rune('a'+i%26)) + string(rune('A'+i/26))
		threads[name] = []map[string]string{{"task": "A"}}
	}
	r := registryWith("A")

	doc := map[string]any{"name": "s", "threads": threads}
	_, err := BuildFromValue(doc, r)
	assert.ErrorIs(t, err, ErrTooManyThreads)
}

func TestBuildRejectsBadScheduleName(t *testing.T) {
	r := registryWith("A")
	doc := `{"name":"","threads":{"T":[{"task":"A"}]}}`

	_, err := BuildFromText(doc, r)
	assert.ErrorIs(t, err, ErrNameLength)
}

func TestBuildRejectsTooManyTasksInThread(t *testing.T) {
	names := make([]string, 0, MaxTasksPerThread+1)
	records := make([]map[string]string, 0, MaxTasksPerThread+1)
	for i := 0; i < MaxTasksPerThread+1; i++ {
		name := "t" + string(rune('a'+i%26)) + string(rune('A'+i/26))
		names = append(names, name)
		records = append(records, map[string]string{"task": name})
	}
	r := registryWith(names...)

	doc := map[string]any{"name": "s", "threads": map[string]any{"T": records}}
	_, err := BuildFromValue(doc, r)
	assert.ErrorIs(t, err, ErrTooManyTasks)
}

func TestLoadReadsFromDisk(t *testing.T) {
	r := registryWith("A")
	path := t.TempDir() + "/schedule.json"
	content := []byte(`{"name":"s","threads":{"T":[{"task":"A"}]}}`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sched, err := Load(path, r)
	require.NoError(t, err)
	assert.Equal(t, "s", sched.Name)
}

func TestLoadMissingFileFails(t *testing.T) {
	r := registryWith("A")
	_, err := Load("/nonexistent/path/schedule.json", r)
	assert.Error(t, err)
}
