package dac_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mangaapi/bizerror"
	"mangaapi/dac"
	"mangaapi/event"
	"mangaapi/session"
	"mangaapi/testinfra"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("GrantsRestAPI", func() {
	var (
		router *gin.Engine
		store  *dac.MemoryStore
		admin  = buildSession(1, true)
	)
	BeforeEach(func() {
		store = dac.NewMemoryStore()
		store.AddUser(10)
		store.AddGroup(100)
		event.PublishFunc = func(ctx context.Context, ev event.Event) *event.EventRecord { return &event.EventRecord{Event: ev} }

		router = gin.Default()
		router.Use(bizerror.ErrorHandling())
		dac.RegisterGrantsRestAPI(router, dac.NewManager(store, nil), session.SimpleAuthFilter())
	})
	AfterEach(func() {
		event.PublishFunc = event.Publish
	})

	It("should reject anonymous and non superuser requests", func() {
		req := httptest.NewRequest(http.MethodGet, dac.PathGrants, nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusUnauthorized))

		req = testinfra.Login(buildSession(10, false), httptest.NewRequest(http.MethodGet, dac.PathGrants, nil))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
	})

	It("should grant to group with wildcard target and list it", func() {
		req := testinfra.Login(admin, httptest.NewRequest(http.MethodPost, "/v1/groups/100/grants",
			bytes.NewReader([]byte(`{"codename":"write","targetType":"manga"}`))))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))

		created := dac.AccessGrant{}
		Expect(json.Unmarshal([]byte(body), &created)).To(BeNil())
		Expect(created.TargetID).To(Equal("*"))
		Expect(created.Codename).To(Equal("write"))
		Expect(created.Allow).To(BeTrue())

		req = testinfra.Login(admin, httptest.NewRequest(http.MethodGet, "/v1/groups/100/grants", nil))
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		var grants []dac.AccessGrant
		Expect(json.Unmarshal([]byte(body), &grants)).To(BeNil())
		Expect(grants).To(HaveLen(1))
		Expect(grants[0].ID).To(Equal(created.ID))

		req = testinfra.Login(admin, httptest.NewRequest(http.MethodGet, dac.PathGrants+"?groupId=100&targetType=manga&targetId=*", nil))
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(json.Unmarshal([]byte(body), &grants)).To(BeNil())
		Expect(grants).To(HaveLen(1))

		req = testinfra.Login(admin, httptest.NewRequest(http.MethodDelete, dac.PathGrants+"/"+created.ID.String(), nil))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))

		req = testinfra.Login(admin, httptest.NewRequest(http.MethodGet, dac.PathGrants, nil))
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
	})

	It("should grant explicit deny to user on one object", func() {
		req := testinfra.Login(admin, httptest.NewRequest(http.MethodPost, "/v1/users/10/grants",
			bytes.NewReader([]byte(`{"codename":"write","targetType":"manga","targetId":"42","allow":false}`))))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		created := dac.AccessGrant{}
		Expect(json.Unmarshal([]byte(body), &created)).To(BeNil())
		Expect(created.TargetID).To(Equal("42"))
		Expect(created.Allow).To(BeFalse())
		Expect(created.UserID).To(BeEquivalentTo(10))
	})

	It("should validate parameters", func() {
		req := testinfra.Login(admin, httptest.NewRequest(http.MethodPost, "/v1/users/10/grants",
			bytes.NewReader([]byte(`{"targetType":"manga"}`))))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param",
			"message":"Key: 'GrantCreation.Codename' Error:Field validation for 'Codename' failed on the 'required' tag","data":null}`))

		req = testinfra.Login(admin, httptest.NewRequest(http.MethodGet, dac.PathGrants+"?userId=abc", nil))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))

		req = testinfra.Login(admin, httptest.NewRequest(http.MethodPost, "/v1/groups/404/grants",
			bytes.NewReader([]byte(`{"codename":"write","targetType":"manga"}`))))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("should assign owners", func() {
		req := testinfra.Login(admin, httptest.NewRequest(http.MethodPut, dac.PathOwners,
			bytes.NewReader([]byte(`{"userId":"10","targetType":"manga","targetId":"42"}`))))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(store.IsOwner(context.Background(), 10, mangaTarget("42"))).To(BeTrue())

		req = testinfra.Login(admin, httptest.NewRequest(http.MethodDelete, dac.PathOwners,
			bytes.NewReader([]byte(`{"userId":"10","targetType":"manga","targetId":"42"}`))))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))
		Expect(store.IsOwner(context.Background(), 10, mangaTarget("42"))).To(BeFalse())
	})
})
