package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	testutil "github.com/trezcool/metalearn/tests"
)

func Test_progressApi(t *testing.T) {
	env := setup(t)
	path := "/v1/progress"

	student := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@example.com", "", user.RoleStudent, true)
	teacher := testutil.CreateUser(t, env.usrRepo, "Tom", "tom@example.com", "", user.RoleTeacher, true)
	admin := testutil.CreateUser(t, env.usrRepo, "Ada", "ada@example.com", "", user.RoleAdmin, true)

	studentToken := env.getToken(t, student)
	teacherToken := env.getToken(t, teacher)

	set := func(userID, module string, pct interface{}, struggling bool) []byte {
		return marshalObj(t, map[string]interface{}{
			"user_id": userID, "module_name": module, "progress": pct, "struggling": struggling,
		})
	}

	tests := []httpTest{
		{name: "List: auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "List: empty", path: path, token: studentToken, wantData: []byte(`[]`)},
		{
			name: "Set: students are forbidden", method: http.MethodPut, path: path, token: studentToken,
			body: set(student.ID, "Electrical Basics", 50, false), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "Set: progress above 100", method: http.MethodPut, path: path, token: teacherToken,
			body: set(student.ID, "Electrical Basics", 100.5, false), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"progress": "progress must be 100 or less"}`),
		},
		{
			name: "Set: negative progress", method: http.MethodPut, path: path, token: teacherToken,
			body: set(student.ID, "Electrical Basics", -1, false), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"progress": "progress must be 0 or greater"}`),
		},
		{
			name: "Set: missing fields", method: http.MethodPut, path: path, token: teacherToken,
			body: []byte(`{"module_name": "  "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"user_id": "this field is required",
				"module_name": "this field is required",
				"progress": "this field is required"
			}`),
		},
		{
			name: "Set: unknown user", method: http.MethodPut, path: path, token: teacherToken,
			body: set("e0b6c0f8-8a4b-4c55-9c1e-3d3b2f3f4a5b", "Electrical Basics", 50, false), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"user_id": "user not found"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.run(t, tt)
		})
	}

	t.Run("Set then recommend", func(t *testing.T) {
		rec := env.run(t, httpTest{
			method: http.MethodPut, path: path, token: teacherToken, body: set(student.ID, "Electrical Basics", 50, false),
		})
		var first progress.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
		assert.Equal(t, student.ID, first.UserID)
		assert.NotNil(t, first.LastActive)

		env.run(t, httpTest{
			method: http.MethodPut, path: path, token: env.getToken(t, admin),
			body: set(student.ID, "Advanced Circuits", 30, true),
		})

		// upsert: same module, new progress
		rec = env.run(t, httpTest{
			method: http.MethodPut, path: path, token: teacherToken, body: set(student.ID, "Electrical Basics", 80, false),
		})
		var updated progress.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, first.ID, updated.ID)
		assert.Equal(t, 80.0, updated.Progress)

		recs, err := env.progressRepo.FetchProgressForUser(context.Background(), student.ID)
		require.NoError(t, err)
		assert.Len(t, recs, 2)

		rec = env.run(t, httpTest{path: path, token: studentToken})
		var listed []progress.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
		assert.Len(t, listed, 2)

		rec = env.run(t, httpTest{path: "/v1/tutor/recommendations", token: studentToken})
		var got []progress.Recommendation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "Advanced Circuits", got[0].ModuleName)
		require.NotNil(t, got[0].LastActive)
		_, err = time.Parse(time.RFC3339, *got[0].LastActive)
		assert.NoError(t, err)
	})
}
