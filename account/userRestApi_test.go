package account_test

import (
	"bytes"
	"errors"
	"mangaapi/account"
	"mangaapi/bizerror"
	"mangaapi/session"
	"mangaapi/testinfra"
	"net/http"
	"net/http/httptest"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("UserRestApi", func() {
	var (
		router *gin.Engine
	)
	BeforeEach(func() {
		router = gin.Default()
		router.Use(bizerror.ErrorHandling())
		account.RegisterUsersHandler(router, session.SimpleAuthFilter())
		account.RegisterGroupsHandler(router, session.SimpleAuthFilter())
	})
	AfterEach(func() {
		account.UpdateBasicAuthSecretFunc = account.UpdateBasicAuthSecret
		account.QueryUsersFunc = account.QueryUsers
		account.CreateUserFunc = account.CreateUser
		account.UpdateUserFunc = account.UpdateUser
		account.CreateGroupFunc = account.CreateGroup
		account.AddGroupMemberFunc = account.AddGroupMember
		account.RemoveGroupMemberFunc = account.RemoveGroupMember
	})

	Describe("UserInfoQueryHandler", func() {
		It("should success when token is valid", func() {
			s := testinfra.BuildSession(1, "view_nsfw_content")
			req := testinfra.Login(s, httptest.NewRequest(http.MethodGet, account.PathSessionUsers, nil))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"identity":{"id":"1","name":"user1","nickname":"","superuser":false},"token":"` + s.Token +
				`","perms":["view_nsfw_content"]}`))
		})

		It("should failed when token is missing", func() {
			req := httptest.NewRequest(http.MethodGet, account.PathSessionUsers, nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body).To(MatchJSON(`{"code":"common.unauthenticated","message":"unauthenticated", "data": null}`))
		})
	})

	Describe("HandleUpdateBaseAuth", func() {
		It("should return 400 when validation failed", func() {
			var payload *account.BasicAuthUpdating
			account.UpdateBasicAuthSecretFunc = func(u *account.BasicAuthUpdating, sec *session.Session) error {
				payload = u
				return nil
			}
			req := testinfra.Login(testinfra.BuildSession(1), httptest.NewRequest(http.MethodPut, account.PathSessionUsers+"/basic-auths",
				bytes.NewReader([]byte(`{"originalSecret":"123","newSecret":"321"}`))))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{
				"code":"common.bad_param",
				"message":"Key: 'BasicAuthUpdating.NewSecret' Error:Field validation for 'NewSecret' failed on the 'gte' tag",
				"data":null}`))
			Expect(payload).To(BeNil())
		})

		It("should return 200 when update successful", func() {
			var payload *account.BasicAuthUpdating
			account.UpdateBasicAuthSecretFunc = func(u *account.BasicAuthUpdating, sec *session.Session) error {
				payload = u
				return nil
			}
			req := testinfra.Login(testinfra.BuildSession(1), httptest.NewRequest(http.MethodPut, account.PathSessionUsers+"/basic-auths",
				bytes.NewReader([]byte(`{"originalSecret":"123456","newSecret":"654321"}`))))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(BeZero())
			Expect(*payload).To(Equal(account.BasicAuthUpdating{OriginalSecret: "123456", NewSecret: "654321"}))
		})
	})

	Describe("HandleCreateUser", func() {
		It("should return 200 when create successful", func() {
			var payload *account.UserCreation
			account.CreateUserFunc = func(c *account.UserCreation, sec *session.Session) (*account.UserInfo, error) {
				payload = c
				return &account.UserInfo{ID: 123, Name: "test", Nickname: "Test", Profile: "home_only"}, nil
			}
			req := testinfra.Login(testinfra.BuildSuperuserSession(1), httptest.NewRequest(http.MethodPost, account.PathUsers,
				bytes.NewReader([]byte(`{"name":"test","secret":"123456", "nickname": "Test"}`))))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"id": "123", "name": "test", "nickname": "Test", "superuser": false, "profile": "home_only"}`))
			Expect(*payload).To(Equal(account.UserCreation{Name: "test", Secret: "123456", Nickname: "Test"}))
		})

		It("should return 403 when service refused", func() {
			account.CreateUserFunc = func(c *account.UserCreation, sec *session.Session) (*account.UserInfo, error) {
				return nil, bizerror.ErrForbidden
			}
			req := testinfra.Login(testinfra.BuildSession(2), httptest.NewRequest(http.MethodPost, account.PathUsers,
				bytes.NewReader([]byte(`{"name":"test","secret":"123456"}`))))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
		})
	})

	Describe("HandleUpdateUser", func() {
		It("should return 400 when id is invalid", func() {
			req := testinfra.Login(testinfra.BuildSession(1), httptest.NewRequest(http.MethodPut, account.PathUsers+"/abc",
				bytes.NewReader([]byte(`{"nickname":"New name"}`))))
			status, _, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("should return 200 when update user successful", func() {
			var pathId types.ID
			account.UpdateUserFunc = func(id types.ID, c *account.UserUpdation, sec *session.Session) error {
				pathId = id
				return nil
			}
			req := testinfra.Login(testinfra.BuildSession(1), httptest.NewRequest(http.MethodPut, account.PathUsers+"/123",
				bytes.NewReader([]byte(`{"nickname":"New name"}`))))
			status, _, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(pathId).To(Equal(types.ID(123)))
		})
	})

	Describe("group members", func() {
		It("should add and remove group member", func() {
			var added, removed []types.ID
			account.AddGroupMemberFunc = func(groupID types.ID, c *account.GroupMemberChange, sec *session.Session) error {
				added = append(added, groupID, c.UserID)
				return nil
			}
			account.RemoveGroupMemberFunc = func(groupID types.ID, userID types.ID, sec *session.Session) error {
				removed = append(removed, groupID, userID)
				return nil
			}
			admin := testinfra.BuildSuperuserSession(1)
			req := testinfra.Login(admin, httptest.NewRequest(http.MethodPost, account.PathGroups+"/10/members",
				bytes.NewReader([]byte(`{"userId":"7"}`))))
			status, _, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(added).To(Equal([]types.ID{10, 7}))

			req = testinfra.Login(admin, httptest.NewRequest(http.MethodDelete, account.PathGroups+"/10/members/7", nil))
			status, _, _ = testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusNoContent))
			Expect(removed).To(Equal([]types.ID{10, 7}))
		})

		It("should map storage failure to 500", func() {
			account.CreateGroupFunc = func(c *account.GroupCreation, sec *session.Session) (*account.Group, error) {
				return nil, errors.New("db down")
			}
			req := testinfra.Login(testinfra.BuildSuperuserSession(1), httptest.NewRequest(http.MethodPost, account.PathGroups,
				bytes.NewReader([]byte(`{"name":"Premium"}`))))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"internal server error","data":null}`))
		})
	})
})
