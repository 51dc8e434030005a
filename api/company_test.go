package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCompanyUseCase struct {
	mock.Mock
}

func (m *MockCompanyUseCase) Get(ctx context.Context) (*domain.CompanyInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompanyInfo), args.Error(1)
}

func (m *MockCompanyUseCase) Save(ctx context.Context, info domain.CompanyInfo) (*domain.CompanyInfo, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompanyInfo), args.Error(1)
}

func TestCompanyRoutes(t *testing.T) {
	mockService := &MockCompanyUseCase{}
	auth := NewAuthenticator(testSecret, "")
	router := NewRouter(RouterConfig{Company: NewCompanyHandler(mockService, nil), Auth: auth})

	mockService.On("Get", mock.Anything).Return(nil, domain.ErrCompanyNotFound).Once()
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/about/company", "", nil).Code)

	info := domain.CompanyInfo{Name: "Fly", Description: "d", Address: "a", Phone: "1", Email: "e@x"}
	mockService.On("Save", mock.Anything, info).Return(&info, nil)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/api/about/company", "", info).Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodPost, "/api/about/company", token(t, auth, alice), info).Code)
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/api/about/company", token(t, auth, admin), info).Code)

	mockService.On("Get", mock.Anything).Return(&info, nil).Once()
	w := do(router, http.MethodGet, "/api/about/company", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.CompanyInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Fly", got.Name)
	mockService.AssertExpectations(t)
}
