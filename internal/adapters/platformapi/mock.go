package platformapi

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Amund211/coursesync/internal/domain"
	"github.com/google/uuid"
)

type item = map[string]any

// MockPlatform is an in-memory stand-in for the platform API, used in development.
// It serves collections and single entities by path and supports create, update and delete.
type MockPlatform struct {
	mu          sync.Mutex
	collections map[string][]item
	singles     map[string]item
}

func NewMockPlatform(nowFunc func() time.Time) *MockPlatform {
	m := &MockPlatform{
		collections: map[string][]item{},
		singles:     map[string]item{},
	}
	m.seed(nowFunc().UTC().Truncate(time.Hour))
	return m
}

// SetCollection replaces the items served at path
func (m *MockPlatform) SetCollection(path string, entities ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]item, 0, len(entities))
	for _, entity := range entities {
		items = append(items, toItem(entity))
	}
	m.collections[path] = items
}

// SetSingle replaces the entity served at path
func (m *MockPlatform) SetSingle(path string, entity any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.singles[path] = toItem(entity)
}

func toItem(entity any) item {
	data, err := json.Marshal(entity)
	if err != nil {
		panic(fmt.Sprintf("mock entity is not serializable: %v", err))
	}
	var out item
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("mock entity is not an object: %v", err))
	}
	return out
}

func (m *MockPlatform) seed(now time.Time) {
	mark := 5
	score := 8

	m.SetCollection("/subjects",
		domain.Subject{ID: "1", Name: "Mathematics"},
		domain.Subject{ID: "2", Name: "Physics"},
	)
	m.SetCollection("/teachers",
		domain.Teacher{ID: "1", Name: "Anna Petrova", SubjectIDs: []string{"1"}},
		domain.Teacher{ID: "2", Name: "Ivan Smirnov", SubjectIDs: []string{"2"}},
	)
	m.SetCollection("/courses",
		domain.Course{ID: "1", Name: "Algebra", SubjectID: "1", TeacherIDs: []string{"1"}, PriceRub: 4900, Purchased: true, StartsAt: now, EndsAt: now.AddDate(0, 3, 0)},
		domain.Course{ID: "2", Name: "Mechanics", SubjectID: "2", TeacherIDs: []string{"2"}, PriceRub: 5900, StartsAt: now, EndsAt: now.AddDate(0, 3, 0)},
	)
	m.SetCollection("/courses/1/lessons",
		domain.Lesson{ID: "10", CourseID: "1", Name: "Linear equations", Position: 1, StartsAt: now},
		domain.Lesson{ID: "11", CourseID: "1", Name: "Quadratic equations", Position: 2, StartsAt: now.AddDate(0, 0, 7), Locked: true},
	)
	m.SetCollection("/courses/2/lessons",
		domain.Lesson{ID: "20", CourseID: "2", Name: "Kinematics", Position: 1, StartsAt: now},
	)
	m.SetCollection("/lessons/10/homeworks",
		domain.Homework{ID: "100", LessonID: "10", StudentID: "7", Status: domain.HomeworkReviewed, Mark: &mark},
		domain.Homework{ID: "101", LessonID: "10", StudentID: "8", Status: domain.HomeworkSent, Files: []string{"solution.pdf"}},
	)
	m.SetSingle("/lessons/10/test", domain.Test{
		ID:       "1000",
		LessonID: "10",
		Questions: []domain.Question{
			{ID: "1", Text: "Solve 2x + 3 = 7", Options: []string{"1", "2", "3"}},
		},
		Passed: true,
		Score:  &score,
	})
	m.SetCollection("/courses/1/webinars",
		domain.Webinar{ID: "50", CourseID: "1", Name: "Exam preparation", StartsAt: now.AddDate(0, 0, 3), Duration: 90},
	)
	m.SetCollection("/courses/1/participants",
		domain.Participant{ID: "1", Name: "Anna Petrova", Role: domain.RoleTeacher, JoinedAt: now},
		domain.Participant{ID: "7", Name: "Maria Ivanova", Role: domain.RoleStudent, JoinedAt: now},
		domain.Participant{ID: "8", Name: "Pavel Sokolov", Role: domain.RoleStudent, JoinedAt: now},
	)
	m.SetCollection("/accounts",
		domain.Account{ID: "1", Name: "Anna Petrova", Role: domain.RoleTeacher, CreatedAt: now},
		domain.Account{ID: "7", Name: "Maria Ivanova", Role: domain.RoleStudent, CreatedAt: now},
		domain.Account{ID: "8", Name: "Pavel Sokolov", Role: domain.RoleStudent, CreatedAt: now},
	)
	m.SetSingle("/account/me", domain.Account{ID: "7", Name: "Maria Ivanova", Email: "maria@example.com", Role: domain.RoleStudent, CreatedAt: now})
}

// Do serves the request in process
func (m *MockPlatform) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	recorder := httptest.NewRecorder()
	m.ServeHTTP(recorder, req)
	return recorder.Result(), nil
}

func (m *MockPlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := path.Clean(r.URL.Path)
	switch r.Method {
	case http.MethodGet:
		m.get(w, p)
	case http.MethodDelete:
		m.delete(w, p)
	case http.MethodPost:
		m.create(w, r, p)
	case http.MethodPut, http.MethodPatch:
		m.update(w, r, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// findItem resolves /parent/id to an item in the collection at parent.
// When no collection lives at parent, every collection ending in the last segment of parent is searched.
func (m *MockPlatform) findItem(p string) (string, int, bool) {
	parent, id := path.Split(p)
	parent = strings.TrimSuffix(parent, "/")

	candidates := []string{parent}
	if _, ok := m.collections[parent]; !ok {
		candidates = nil
		suffix := "/" + path.Base(parent)
		for _, collectionPath := range slices.Sorted(maps.Keys(m.collections)) {
			if strings.HasSuffix(collectionPath, suffix) {
				candidates = append(candidates, collectionPath)
			}
		}
	}

	for _, collectionPath := range candidates {
		for i, it := range m.collections[collectionPath] {
			if fmt.Sprint(it["id"]) == id {
				return collectionPath, i, true
			}
		}
	}
	return "", 0, false
}

func (m *MockPlatform) get(w http.ResponseWriter, p string) {
	if items, ok := m.collections[p]; ok {
		writeJSON(w, http.StatusOK, items)
		return
	}
	if single, ok := m.singles[p]; ok {
		writeJSON(w, http.StatusOK, single)
		return
	}
	if collectionPath, i, ok := m.findItem(p); ok {
		writeJSON(w, http.StatusOK, m.collections[collectionPath][i])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (m *MockPlatform) delete(w http.ResponseWriter, p string) {
	if _, ok := m.singles[p]; ok {
		delete(m.singles, p)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if collectionPath, i, ok := m.findItem(p); ok {
		m.collections[collectionPath] = slices.Delete(m.collections[collectionPath], i, i+1)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (m *MockPlatform) create(w http.ResponseWriter, r *http.Request, p string) {
	var created item
	if err := json.NewDecoder(r.Body).Decode(&created); err != nil || created == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if id, ok := created["id"]; !ok || fmt.Sprint(id) == "" {
		created["id"] = uuid.NewString()
	}
	m.collections[p] = append(m.collections[p], created)
	writeJSON(w, http.StatusCreated, created)
}

func (m *MockPlatform) update(w http.ResponseWriter, r *http.Request, p string) {
	var patch item
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if single, ok := m.singles[p]; ok {
		updated := maps.Clone(single)
		maps.Copy(updated, patch)
		m.singles[p] = updated
		writeJSON(w, http.StatusOK, updated)
		return
	}
	if collectionPath, i, ok := m.findItem(p); ok {
		updated := maps.Clone(m.collections[collectionPath][i])
		maps.Copy(updated, patch)
		updated["id"] = m.collections[collectionPath][i]["id"]
		m.collections[collectionPath][i] = updated
		writeJSON(w, http.StatusOK, updated)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}
