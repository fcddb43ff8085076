package platformapi_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Amund211/coursesync/internal/adapters/platformapi"
	"github.com/Amund211/coursesync/internal/config"
	"github.com/Amund211/coursesync/internal/domain"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*platformapi.Client, *platformapi.MockPlatform) {
	t.Helper()
	platform := platformapi.NewMockPlatform(time.Now)
	client, err := platformapi.NewClient("http://platform.mock", platform, &mockedTokens{token: "token"}, &mockedLimiter{allow: true}, time.Now)
	require.NoError(t, err)
	return client, platform
}

func TestMockPlatform(t *testing.T) {
	t.Parallel()

	t.Run("serves collections and items", func(t *testing.T) {
		t.Parallel()

		client, _ := newMockClient(t)

		data, err := client.Get(t.Context(), "/courses/1/participants", nil)
		require.NoError(t, err)
		var participants []domain.Participant
		require.NoError(t, json.Unmarshal(data, &participants))
		require.Len(t, participants, 3)

		data, err = client.Get(t.Context(), "/courses/1", nil)
		require.NoError(t, err)
		var course domain.Course
		require.NoError(t, json.Unmarshal(data, &course))
		require.Equal(t, "Algebra", course.Name)

		// Lessons are found by id without their course
		data, err = client.Get(t.Context(), "/lessons/20", nil)
		require.NoError(t, err)
		var lesson domain.Lesson
		require.NoError(t, json.Unmarshal(data, &lesson))
		require.Equal(t, "2", lesson.CourseID)

		_, err = client.Get(t.Context(), "/lessons/999", nil)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete removes the item", func(t *testing.T) {
		t.Parallel()

		client, _ := newMockClient(t)

		require.NoError(t, client.Delete(t.Context(), "/courses/1/participants/7"))
		require.ErrorIs(t, client.Delete(t.Context(), "/courses/1/participants/7"), domain.ErrNotFound)

		data, err := client.Get(t.Context(), "/courses/1/participants", nil)
		require.NoError(t, err)
		var participants []domain.Participant
		require.NoError(t, json.Unmarshal(data, &participants))
		require.Len(t, participants, 2)
	})

	t.Run("create and update", func(t *testing.T) {
		t.Parallel()

		client, _ := newMockClient(t)

		data, err := client.Send(t.Context(), http.MethodPost, "/subjects", []byte(`{"name":"Chemistry"}`))
		require.NoError(t, err)
		var subject domain.Subject
		require.NoError(t, json.Unmarshal(data, &subject))
		require.NotEmpty(t, subject.ID)
		require.Equal(t, "Chemistry", subject.Name)

		data, err = client.Send(t.Context(), http.MethodPatch, "/subjects/"+subject.ID, []byte(`{"name":"Organic chemistry","id":"other"}`))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &subject))
		require.Equal(t, "Organic chemistry", subject.Name)
		require.NotEqual(t, "other", subject.ID)

		data, err = client.Send(t.Context(), http.MethodPut, "/account/me", []byte(`{"name":"Maria I."}`))
		require.NoError(t, err)
		var me domain.Account
		require.NoError(t, json.Unmarshal(data, &me))
		require.Equal(t, "Maria I.", me.Name)
		require.Equal(t, "7", me.ID)
	})

	t.Run("requires a bearer token", func(t *testing.T) {
		t.Parallel()

		platform := platformapi.NewMockPlatform(time.Now)
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://platform.mock/subjects", nil)
		require.NoError(t, err)

		resp, err := platform.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestNewHttpClientOrMock(t *testing.T) {
	t.Parallel()

	t.Run("development without url uses mock", func(t *testing.T) {
		t.Parallel()

		httpClient, baseURL, err := platformapi.NewHttpClientOrMock(config.NewDevelopment(""), time.Now)
		require.NoError(t, err)
		require.IsType(t, &platformapi.MockPlatform{}, httpClient)
		require.Equal(t, "http://platform.mock", baseURL)
	})

	t.Run("configured url uses real client", func(t *testing.T) {
		t.Parallel()

		httpClient, baseURL, err := platformapi.NewHttpClientOrMock(config.NewDevelopment("https://api.example.com"), time.Now)
		require.NoError(t, err)
		require.IsType(t, &http.Client{}, httpClient)
		require.Equal(t, "https://api.example.com", baseURL)
	})
}
