package server_test

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/appleboy/gofight/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/valyala/fastjson"
)

func TestRequestItemLifecycle(t *testing.T) {
	e := setup(t)
	header := e.auth(t, e.admin)
	groups, err := e.db.FindGroupsByBoardID(e.board.ID)
	require.NoError(t, err)

	gofight.New().POST(e.boardPath("/items")).SetHeader(header).SetJSON(gofight.D{"name": ""}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnprocessableEntity, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-parameters", "message":"The name field is required."}}`, r.Body.String())
	})

	gofight.New().POST(e.boardPath("/items")).SetHeader(header).SetJSON(gofight.D{"name": "Login broken", "item_type": "bug"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Equal(t, 1, v.GetInt("number"))
		assert.Equal(t, "bug", string(v.GetStringBytes("item_type")))
		assert.Equal(t, groups[0].ID, string(v.GetStringBytes("group_id")))
		assert.Equal(t, fastjson.TypeNull, v.Get("assignee_id").Type())
	})

	// Unknown fields and absent fields are left untouched; null clears.
	params := `{"repro_steps":"1. open\n2. ping @alice","assignee_id":null}`
	gofight.New().PUT(e.boardPath("/items/1")).SetHeader(header).SetBody(params).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Equal(t, "Login broken", string(v.GetStringBytes("item", "name")))
		assert.Equal(t, "1. open\n2. ping @alice", string(v.GetStringBytes("item", "repro_steps")))
		require.Len(t, v.GetArray("activities"), 1)
		assert.Equal(t, model.ActivityReproStepsChanged, string(v.GetStringBytes("activities", "0", "type")))
		assert.Equal(t, "Admin User", string(v.GetStringBytes("activities", "0", "user_name")))
	})

	e.notifier.Wait()
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, "You were mentioned in Bug #1", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "/boards/"+e.board.ID+"/ticket/1?view=kanban")

	gofight.New().PUT(e.boardPath("/items/1")).SetHeader(header).SetJSON(gofight.D{"item_type": "epic"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnprocessableEntity, r.Code)
	})

	gofight.New().POST(e.boardPath("/items/1/move")).SetHeader(header).SetJSON(gofight.D{"group_id": groups[1].ID}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Equal(t, groups[1].ID, string(v.GetStringBytes("item", "group_id")))
		assert.Equal(t, "In Progress", string(v.GetStringBytes("activities", "0", "new_value")))
	})

	gofight.New().GET(e.boardPath("/ticket/1")).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		activities := v.GetArray("activities")
		require.Len(t, activities, 3)
		assert.Equal(t, model.ActivityStatusChanged, string(activities[0].GetStringBytes("type")))
		assert.Equal(t, model.ActivityCreated, string(activities[2].GetStringBytes("type")))
		assert.Empty(t, v.GetArray("comments"))
	})

	since := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	gofight.New().GET(e.boardPath("/ticket/1?since="+since)).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Empty(t, v.GetArray("activities"))
	})

	gofight.New().GET(e.boardPath("/ticket/1?since=not-a-date")).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnprocessableEntity, r.Code)
	})

	gofight.New().DELETE(e.boardPath("/items/1")).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})

	gofight.New().GET(e.boardPath("/ticket/1")).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-found", "message":"Item not found."}}`, r.Body.String())
	})
}

func TestRequestItemComments(t *testing.T) {
	e := setup(t)
	header := e.auth(t, e.alice)

	gofight.New().POST(e.boardPath("/items")).SetHeader(header).SetJSON(gofight.D{"name": "Discuss"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)
	})

	var id string
	gofight.New().POST(e.boardPath("/items/1/comments")).SetHeader(header).SetJSON(gofight.D{"body": "Looks good @admin"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		id = string(v.GetStringBytes("id"))
		assert.Equal(t, "Alice Liddell", string(v.GetStringBytes("user_name")))
	})

	e.notifier.Wait()
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "admin@example.com", sent[0].To)

	gofight.New().POST(e.boardPath("/items/1/comments")).SetHeader(header).SetJSON(gofight.D{"body": strings.Repeat("x", 5001)}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnprocessableEntity, r.Code)
	})

	gofight.New().GET(e.boardPath("/ticket/1")).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		require.Len(t, v.GetArray("comments"), 1)
		assert.Equal(t, "Looks good @admin", string(v.GetStringBytes("comments", "0", "body")))
	})

	gofight.New().DELETE(e.boardPath("/items/1/comments/"+id)).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})

	gofight.New().DELETE(e.boardPath("/items/1/comments/"+id)).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestItemAttachments(t *testing.T) {
	e := setup(t)
	header := e.auth(t, e.alice)

	gofight.New().POST(e.boardPath("/items")).SetHeader(header).SetJSON(gofight.D{"name": "Screenshot"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)
	})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	var p string
	upload := []gofight.UploadFile{{Path: "screenshot.png", Name: "image", Content: buf.Bytes()}}
	gofight.New().POST(e.boardPath("/items/1/attachments")).SetHeader(header).SetFileFromPath(upload).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		p = string(v.GetStringBytes("path"))
		assert.Regexp(t, `^item-attachments/[^/]+/[0-9a-f]{16}\.png$`, p)
		require.Len(t, v.GetArray("item", "attachments"), 1)
	})

	exists, err := afero.Exists(e.fs, p)
	require.NoError(t, err)
	assert.True(t, exists)

	upload = []gofight.UploadFile{{Path: "notes.txt", Name: "image", Content: []byte("hello")}}
	gofight.New().POST(e.boardPath("/items/1/attachments")).SetHeader(header).SetFileFromPath(upload).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnprocessableEntity, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-parameters", "message":"The image must be a file of type: jpeg, png, gif, webp."}}`, r.Body.String())
	})

	upload = []gofight.UploadFile{{Path: "huge.png", Name: "image", Content: bytes.Repeat([]byte{0x89}, 12<<20)}}
	gofight.New().POST(e.boardPath("/items/1/attachments")).SetHeader(header).SetFileFromPath(upload).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusRequestEntityTooLarge, r.Code)
	})

	name := p[strings.LastIndex(p, "/")+1:]
	gofight.New().GET(e.boardPath("/items/1/attachments/"+name)).SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "image/png", (*httptest.ResponseRecorder)(r).Header().Get("Content-Type"))
	})

	json := gofight.H{"Authorization": header["Authorization"], "Content-Type": "application/json"}
	gofight.New().DELETE(e.boardPath("/items/1/attachments")).SetHeader(json).SetJSON(gofight.D{"path": p}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Empty(t, v.GetArray("item", "attachments"))
	})

	exists, err = afero.Exists(e.fs, p)
	require.NoError(t, err)
	assert.False(t, exists)
}
