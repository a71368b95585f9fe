package cli

import (
	"encoding/json"
	"strconv"
	"time"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"
)

// Slices of these types serialize exactly like the model slices; the named
// types only add table rendering.

type taskList []model.Task

func (l taskList) Header() []string {
	return []string{"ID", "Title", "Status", "Owner", "Created"}
}

func (l taskList) Rows() [][]string {
	out := make([][]string, 0, len(l))
	for _, t := range l {
		out = append(out, []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			t.Status.Label(),
			ownerLabel(t),
			stamp(t.CreatedAt),
		})
	}
	return out
}

type taskDetail model.Task

func (t taskDetail) MarshalJSON() ([]byte, error) { return json.Marshal(model.Task(t)) }

func (t taskDetail) Header() []string { return []string{"Field", "Value"} }

func (t taskDetail) Rows() [][]string {
	return [][]string{
		{"ID", strconv.FormatInt(t.ID, 10)},
		{"Title", t.Title},
		{"Status", t.Status.Label()},
		{"Owner", ownerLabel(model.Task(t))},
		{"Created", stamp(t.CreatedAt)},
		{"Description", t.Description},
	}
}

type boardLane struct {
	Status    model.Status `json:"status"`
	Label     string       `json:"label"`
	Droppable bool         `json:"droppable"`
	Tasks     []model.Task `json:"tasks"`
}

// boardView renders lanes side by side, one card per row.
type boardView []boardLane

func newBoardView(lanes []board.Lane) boardView {
	out := make(boardView, 0, len(lanes))
	for _, l := range lanes {
		tasks := l.Tasks
		if tasks == nil {
			tasks = []model.Task{}
		}
		out = append(out, boardLane{Status: l.Status, Label: l.Label, Droppable: l.Droppable, Tasks: tasks})
	}
	return out
}

func (b boardView) Header() []string {
	out := make([]string, 0, len(b))
	for _, l := range b {
		h := l.Label + " (" + strconv.Itoa(len(l.Tasks)) + ")"
		if !l.Droppable {
			h += " [locked]"
		}
		out = append(out, h)
	}
	return out
}

func (b boardView) Rows() [][]string {
	depth := 0
	for _, l := range b {
		depth = max(depth, len(l.Tasks))
	}
	rows := make([][]string, depth)
	for i := range rows {
		rows[i] = make([]string, len(b))
		for j, l := range b {
			if i < len(l.Tasks) {
				t := l.Tasks[i]
				rows[i][j] = "#" + strconv.FormatInt(t.ID, 10) + " " + t.Title
			}
		}
	}
	return rows
}

type userList []model.User

func (l userList) Header() []string { return []string{"ID", "Username", "Email", "Role"} }

func (l userList) Rows() [][]string {
	out := make([][]string, 0, len(l))
	for _, u := range l {
		out = append(out, []string{strconv.FormatInt(u.ID, 10), u.Username, u.Email, u.Role.Label()})
	}
	return out
}

type notificationList []model.Notification

func (l notificationList) Header() []string {
	return []string{"ID", "", "Title", "Message", "Task", "When"}
}

func (l notificationList) Rows() [][]string {
	now := time.Now()
	out := make([][]string, 0, len(l))
	for _, n := range l {
		mark := ""
		if !n.Read {
			mark = "*"
		}
		task := ""
		if n.TaskID != nil {
			task = "#" + strconv.FormatInt(*n.TaskID, 10)
		}
		when := ""
		if n.CreatedAt != nil {
			when = notify.Age(n.CreatedAt.Time, now)
		}
		out = append(out, []string{strconv.FormatInt(n.ID, 10), mark, n.Title, n.Message, task, when})
	}
	return out
}

func ownerLabel(t model.Task) string {
	if t.OwnerUsername != "" {
		return t.OwnerUsername
	}
	if t.OwnerID != 0 {
		return "#" + strconv.FormatInt(t.OwnerID, 10)
	}
	return ""
}

func stamp(ts *model.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.Local().Format("2006-01-02 15:04")
}
