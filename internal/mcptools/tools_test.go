package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/cpa-front/internal/academy"
	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/download"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListSubjects(ctx context.Context) ([]academy.Subject, error) {
	args := m.Called(ctx)
	subjects, _ := args.Get(0).([]academy.Subject)
	return subjects, args.Error(1)
}

func (m *mockCatalog) ListUnits(ctx context.Context, q academy.UnitQuery) ([]academy.Unit, error) {
	args := m.Called(ctx, q)
	units, _ := args.Get(0).([]academy.Unit)
	return units, args.Error(1)
}

func (m *mockCatalog) ListMaterials(ctx context.Context, q academy.MaterialQuery) (*academy.MaterialPage, error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(*academy.MaterialPage)
	return page, args.Error(1)
}

func (m *mockCatalog) GetQuestionSet(ctx context.Context, id int) (*academy.QuestionSet, error) {
	args := m.Called(ctx, id)
	qs, _ := args.Get(0).(*academy.QuestionSet)
	return qs, args.Error(1)
}

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Download(ctx context.Context, path string) (*download.Outcome, error) {
	args := m.Called(ctx, path)
	out, _ := args.Get(0).(*download.Outcome)
	return out, args.Error(1)
}

func call(t *testing.T, tools *Tools, name string, arguments map[string]any) *mcp.CallToolResult {
	t.Helper()
	var handler mcpserver.ToolHandlerFunc
	for _, st := range tools.ServerTools() {
		if st.Tool.Name == name {
			handler = st.Handler
		}
	}
	require.NotNil(t, handler, "tool %s not registered", name)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestToolDefinitions(t *testing.T) {
	tools := New(&mockCatalog{}, &mockDownloader{})

	var names []string
	for _, st := range tools.ServerTools() {
		names = append(names, st.Tool.Name)
		assert.NotEmpty(t, st.Tool.Description)
	}
	assert.Equal(t, []string{"list_subjects", "list_units", "search_materials", "get_question_set", "download_material"}, names)

	assert.NotNil(t, NewServer(tools, "test"))
}

func TestListSubjects(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("ListSubjects", mock.Anything).Return([]academy.Subject{{ID: 1, Name: "Auditing", Slug: "auditing"}}, nil)

	res := call(t, New(catalog, nil), "list_subjects", nil)
	assert.False(t, res.IsError)

	var got []academy.Subject
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, "Auditing", got[0].Name)
	catalog.AssertExpectations(t)
}

func TestSearchMaterialsPassesFilters(t *testing.T) {
	catalog := &mockCatalog{}
	want := academy.MaterialQuery{Unit: 4, Search: "leases", Sort: academy.SortByDownloads, Page: 2}
	catalog.On("ListMaterials", mock.Anything, want).Return(&academy.MaterialPage{Count: 1, Results: []academy.Material{{ID: 8, Title: "Leases"}}}, nil)

	res := call(t, New(catalog, nil), "search_materials", map[string]any{
		"unit":   float64(4),
		"search": "leases",
		"sort":   "downloads",
		"page":   float64(2),
	})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"title": "Leases"`)
	catalog.AssertExpectations(t)
}

func TestListUnitsDefaults(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("ListUnits", mock.Anything, academy.UnitQuery{}).Return([]academy.Unit{}, nil)

	res := call(t, New(catalog, nil), "list_units", map[string]any{})
	assert.False(t, res.IsError)
	assert.Equal(t, "[]", text(t, res))
}

func TestGetQuestionSetRequiresID(t *testing.T) {
	res := call(t, New(&mockCatalog{}, nil), "get_question_set", map[string]any{})
	assert.True(t, res.IsError)
}

func TestUnauthenticatedBecomesToolError(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("GetQuestionSet", mock.Anything, 5).Return(nil, &apiclient.RefreshError{Err: apiclient.ErrNoRefreshToken})

	res := call(t, New(catalog, nil), "get_question_set", map[string]any{"id": float64(5)})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "cpa login")
}

func TestDownloadMaterial(t *testing.T) {
	dl := &mockDownloader{}
	dl.On("Download", mock.Anything, "/materials/12/download/").Return(&download.Outcome{Path: "/home/ada/Downloads/far.pdf", Size: 10}, nil).Once()
	dl.On("Download", mock.Anything, "/materials/13/download/").Return(&download.Outcome{Path: "https://bucket/x", RedirectURL: "https://bucket/x"}, nil).Once()
	dl.On("Download", mock.Anything, "/materials/14/download/").Return(nil, errors.New("Not found.")).Once()

	tools := New(&mockCatalog{}, dl)

	res := call(t, tools, "download_material", map[string]any{"id": float64(12)})
	assert.Equal(t, "Saved material 12 to /home/ada/Downloads/far.pdf", text(t, res))

	res = call(t, tools, "download_material", map[string]any{"id": float64(13)})
	assert.Equal(t, "Opened download link for material 13", text(t, res))

	res = call(t, tools, "download_material", map[string]any{"id": float64(14)})
	assert.True(t, res.IsError)
	assert.Equal(t, "Not found.", text(t, res))
	dl.AssertExpectations(t)
}
