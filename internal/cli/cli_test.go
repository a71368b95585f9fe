package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskboard-cli/internal/apitest"
	"taskboard-cli/internal/model"
)

func runCLI(t *testing.T, stdin string, args ...string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// setup points the CLI at a fresh fake server and an isolated config dir.
func setup(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	t.Setenv("TASKBOARD_CONFIG_DIR", t.TempDir())
	t.Setenv("TASKBOARD_BASE_URL", srv.URL)
	t.Setenv("TASKBOARD_FORMAT", "")
	return srv
}

func mustData(t *testing.T, stdin string, args ...string) any {
	t.Helper()
	stdout, stderr, err := runCLI(t, stdin, args...)
	if err != nil {
		t.Fatalf("command failed: taskboard %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, stdout, args)
	}
	data, ok := env["data"]
	if !ok {
		t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
	}
	return data
}

func login(t *testing.T, username string) {
	t.Helper()
	mustData(t, username+"\n", "login", "-u", username, "--password-stdin")
}

func TestLogin_PersistsSessionAcrossInvocations(t *testing.T) {
	setup(t)

	data := mustData(t, "gerente\n", "login", "-u", "gerente", "--password-stdin").(map[string]any)
	if data["role"] != string(model.RoleManagerial) {
		t.Fatalf("expected gerencial login, got %v", data)
	}

	who := mustData(t, "", "whoami").(map[string]any)
	if who["username"] != "gerente" {
		t.Fatalf("expected whoami gerente, got %v", who)
	}
	caps := who["capabilities"].(map[string]any)
	if caps["manageTasks"] != true || caps["createUsers"] != false {
		t.Fatalf("unexpected capabilities %v", caps)
	}

	mustData(t, "", "logout")
	_, stderr, err := runCLI(t, "", "whoami")
	if err == nil || !strings.Contains(string(stderr), "not logged in") {
		t.Fatalf("expected not logged in after logout, err=%v stderr=%s", err, stderr)
	}
}

func TestLogin_PromptsForUsernameAndRejectsBadPassword(t *testing.T) {
	setup(t)

	_, stderr, err := runCLI(t, "admin\nwrong\n", "login")
	if err == nil {
		t.Fatalf("expected login failure")
	}
	if !strings.Contains(string(stderr), "Username: ") || !strings.Contains(string(stderr), "incorrect username or password") {
		t.Fatalf("unexpected stderr:\n%s", stderr)
	}
}

func TestTasks_CreateListMoveDelete(t *testing.T) {
	srv := setup(t)
	login(t, "admin")

	created := mustData(t, "", "tasks", "create", "--title", "Write report", "--description", "Q3 summary").(map[string]any)
	if created["status"] != string(model.StatusPending) || created["titulo"] != "Write report" {
		t.Fatalf("unexpected created task %v", created)
	}
	id := int64(created["id"].(float64))

	list := mustData(t, "", "tasks", "list", "--status", "pending").([]any)
	if len(list) != 1 {
		t.Fatalf("expected one pending task, got %v", list)
	}

	srv.ResetCalls()
	stdout, _, err := runCLI(t, "", "tasks", "move", "task-"+itoa(id), "pending")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if srv.Mutations() != 0 {
		t.Fatalf("expected same-lane move to send nothing")
	}
	if !strings.Contains(string(stdout), `"changed":false`) {
		t.Fatalf("expected changed=false meta, got %s", stdout)
	}

	moved := mustData(t, "", "tasks", "move", itoa(id), "done").(map[string]any)
	if moved["status"] != string(model.StatusDone) {
		t.Fatalf("expected done, got %v", moved)
	}

	_, stderr, err := runCLI(t, "", "tasks", "delete", itoa(id))
	if err == nil || !strings.Contains(string(stderr), "--yes") {
		t.Fatalf("expected refusal without --yes, stderr=%s", stderr)
	}
	mustData(t, "", "tasks", "delete", itoa(id), "--yes")
	if _, ok := srv.Task(id); ok {
		t.Fatalf("expected task deleted on server")
	}
}

func TestTasks_ViewOnlyCannotComplete(t *testing.T) {
	srv := setup(t)
	task := srv.AddTask(model.Task{Title: "Review", Status: model.StatusInReview})
	login(t, "viewer")
	srv.ResetCalls()

	_, stderr, err := runCLI(t, "", "tasks", "move", itoa(task.ID), "done")
	if err == nil || !strings.Contains(string(stderr), "view-only users cannot complete tasks") {
		t.Fatalf("expected denial, err=%v stderr=%s", err, stderr)
	}
	if srv.Mutations() != 0 {
		t.Fatalf("expected no mutation requests, got %d", srv.Mutations())
	}
	if got, _ := srv.Task(task.ID); got.Status != model.StatusInReview {
		t.Fatalf("expected status unchanged, got %s", got.Status)
	}

	moved := mustData(t, "", "tasks", "move", itoa(task.ID), "in_progress").(map[string]any)
	if moved["status"] != string(model.StatusInProgress) {
		t.Fatalf("expected view-only move short of done to succeed, got %v", moved)
	}
}

func TestTasks_BoardTable(t *testing.T) {
	srv := setup(t)
	srv.AddTask(model.Task{Title: "Alpha", Status: model.StatusPending})
	srv.AddTask(model.Task{Title: "Beta", Status: model.StatusDone})
	login(t, "viewer")

	stdout, stderr, err := runCLI(t, "", "--format", "table", "tasks", "board")
	if err != nil {
		t.Fatalf("board: %v\n%s", err, stderr)
	}
	out := string(stdout)
	for _, want := range []string{"Pending (1)", "Done (1) [locked]", "Alpha", "Beta"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in board table:\n%s", want, out)
		}
	}
}

func TestUsers_AdminCreatesAndManagerCannotEditAdmin(t *testing.T) {
	srv := setup(t)
	login(t, "admin")

	bob := mustData(t, "", "users", "create", "--username", "bob", "--email", "bob@example.com", "--password", "pw", "--role", "visualizacao").(map[string]any)
	if _, ok := bob["password"]; ok {
		t.Fatalf("expected no password in output, got %v", bob)
	}
	users := mustData(t, "", "users", "list").([]any)
	found := false
	for _, u := range users {
		if u.(map[string]any)["username"] == "bob" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bob in list, got %v", users)
	}

	login(t, "gerente")
	admin, _ := srv.UserByName("admin")
	srv.ResetCalls()
	_, stderr, err := runCLI(t, "", "users", "edit", itoa(admin.ID), "--email", "x@example.com")
	if err == nil || !strings.Contains(string(stderr), "managers cannot edit administrators") {
		t.Fatalf("expected permission error, stderr=%s", stderr)
	}
	if srv.Count(http.MethodPut, "") != 0 {
		t.Fatalf("expected no PUT")
	}
}

func TestNotifications_CountReadAllAndWatch(t *testing.T) {
	srv := setup(t)
	srv.AddNotification(model.Notification{Title: "Task assigned", Message: "m1"})
	srv.AddNotification(model.Notification{Title: "Task updated", Message: "m2"})
	login(t, "admin")

	count := mustData(t, "", "notifications", "count").(map[string]any)
	if count["unread"] != float64(2) {
		t.Fatalf("expected 2 unread, got %v", count)
	}
	mustData(t, "", "notifications", "read-all")
	list := mustData(t, "", "notifications", "list", "--unread").([]any)
	if len(list) != 0 {
		t.Fatalf("expected no unread after read-all, got %v", list)
	}

	stdout, stderr, err := runCLI(t, "", "notifications", "watch", "--limit", "1", "--interval", "50ms")
	if err != nil {
		t.Fatalf("watch: %v\n%s", err, stderr)
	}
	var ev watchEvent
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &ev); err != nil {
		t.Fatalf("expected one json line, got %s", stdout)
	}
	if ev.Unread != 0 || len(ev.Items) != 2 {
		t.Fatalf("unexpected watch event %+v", ev)
	}
}

func TestConfig_InitAndShow(t *testing.T) {
	setup(t)

	data := mustData(t, "", "config", "init").(map[string]any)
	path, _ := data["path"].(string)
	if !strings.HasSuffix(path, "config.yaml") {
		t.Fatalf("unexpected path %v", data)
	}
	if _, stderr, err := runCLI(t, "", "config", "init"); err == nil || !strings.Contains(string(stderr), "already exists") {
		t.Fatalf("expected refusal to overwrite, stderr=%s", stderr)
	}

	show := mustData(t, "", "config", "show").(map[string]any)
	if show["pollInterval"] != "5s" || show["refreshGrace"] != "1.5s" {
		t.Fatalf("unexpected config %v", show)
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	if id, err := parseID("task", "task-7"); err != nil || id != 7 {
		t.Fatalf("parseID(task-7) = %d, %v", id, err)
	}
	if _, err := parseID("task", "abc"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
	if _, err := parseID("task", "0"); err == nil {
		t.Fatalf("expected error for zero id")
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestFailingCommandClosesDebugLog(t *testing.T) {
	setup(t)
	logPath := filepath.Join(t.TempDir(), "debug.log")

	app := &App{}
	cmd := newRootCmd(app)
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs([]string{"whoami", "--debug-log", logPath})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected whoami to fail without a session")
	}
	if app.rt != nil {
		t.Fatalf("expected runtime released after a failed command")
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected debug log to have been opened: %v", err)
	}
}

func TestJSONEnvelope(t *testing.T) {
	srv := setup(t)
	login(t, "admin")
	task := srv.AddTask(model.Task{Title: "Ship it"})

	stdout, stderr, err := runCLI(t, "", "tasks", "move", itoa(task.ID), "in_progress")
	if err != nil {
		t.Fatalf("move: %v\n%s", err, stderr)
	}
	var env struct {
		Data model.Task     `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	if env.Data.Status != model.StatusInProgress || env.Meta["changed"] != true || env.Meta["from"] != string(model.StatusPending) {
		t.Fatalf("unexpected envelope %s", stdout)
	}

	stdout, _, err = runCLI(t, "", "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	var withHints map[string]any
	if err := json.Unmarshal(stdout, &withHints); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	if _, ok := withHints["data"]; !ok {
		t.Fatalf("expected data key, got %s", stdout)
	}
	if hints, ok := withHints["_hints"].([]any); !ok || len(hints) == 0 {
		t.Fatalf("expected _hints, got %s", stdout)
	}
}
