package catalog

import (
	"mangaapi/bizerror"
	"mangaapi/dac"
	"mangaapi/enforce"
	"mangaapi/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathManga    = "/v1/manga"
	PathChapters = "/v1/chapters"
)

// RegisterCatalogRestAPI wires every route behind the guards of a.
func RegisterCatalogRestAPI(r *gin.Engine, a *enforce.Authorizer, middleWares ...gin.HandlerFunc) {
	h := &catalogHandler{authorizer: a}

	g := r.Group(PathManga, middleWares...)
	g.GET("", a.ObjectGuard(TypeManga, ""), h.handleQueryManga)
	g.POST("", a.ObjectGuard(TypeManga, ""), h.handleCreateManga)
	mangaGuards := []gin.HandlerFunc{a.ObjectGuard(TypeManga, "id"), a.ContentGate(TypeManga, "id")}
	g.GET(":id", append(mangaGuards, h.handleDetailManga)...)
	g.PUT(":id", append(mangaGuards, h.handleUpdateManga)...)
	g.DELETE(":id", append(mangaGuards, h.handleDeleteManga)...)
	g.GET(":id/cover", append(mangaGuards, h.handleGetCover)...)
	g.PUT(":id/cover", append(mangaGuards, h.handleUploadCover)...)
	g.GET(":id/chapters", append(mangaGuards, h.handleQueryChapters)...)
	// a chapter is created in the chapter collection, the parent manga only passes its content gate
	g.POST(":id/chapters", a.ObjectGuard(TypeChapter, ""), a.ContentGate(TypeManga, "id"), h.handleCreateChapter)

	c := r.Group(PathChapters, middleWares...)
	chapterGuards := []gin.HandlerFunc{a.ObjectGuard(TypeChapter, "id"), a.ContentGate(TypeChapter, "id")}
	c.GET(":id", append(chapterGuards, h.handleDetailChapter)...)
	c.PUT(":id", append(chapterGuards, h.handleUpdateChapter)...)
	c.DELETE(":id", append(chapterGuards, h.handleDeleteChapter)...)
}

type catalogHandler struct {
	authorizer *enforce.Authorizer
}

func (h *catalogHandler) includeNSFW(sec *session.Session) bool {
	return h.authorizer.CanViewNSFW(sec.Ctx(), dac.SubjectOf(sec))
}

func (h *catalogHandler) handleQueryManga(c *gin.Context) {
	q := MangaQuery{}
	if err := c.ShouldBindWith(&q, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	sec := session.ExtractSessionFromGinContext(c)
	page, err := QueryMangaFunc(&q, h.includeNSFW(sec), sec)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, page)
}

func (h *catalogHandler) handleCreateManga(c *gin.Context) {
	creation := MangaCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	m, err := CreateMangaFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, m)
}

func (h *catalogHandler) handleDetailManga(c *gin.Context) {
	m, err := DetailMangaFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, m)
}

func (h *catalogHandler) handleUpdateManga(c *gin.Context) {
	id := parseIDParam(c, "id")
	updation := MangaUpdation{}
	if err := c.ShouldBindBodyWith(&updation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	m, err := UpdateMangaFunc(id, &updation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, m)
}

func (h *catalogHandler) handleDeleteManga(c *gin.Context) {
	if err := DeleteMangaFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *catalogHandler) handleGetCover(c *gin.Context) {
	bytes, err := DetailCoverFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.Data(http.StatusOK, "image/png", bytes)
}

func (h *catalogHandler) handleUploadCover(c *gin.Context) {
	id := parseIDParam(c, "id")
	file, err := c.FormFile("file")
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	src, err := file.Open()
	if err != nil {
		panic(err)
	}
	defer src.Close()

	if err := UploadCoverFunc(id, src, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *catalogHandler) handleQueryChapters(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	chapters, err := QueryChaptersFunc(parseIDParam(c, "id"), h.includeNSFW(sec), sec)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, chapters)
}

func (h *catalogHandler) handleCreateChapter(c *gin.Context) {
	mangaID := parseIDParam(c, "id")
	creation := ChapterCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	chapter, err := CreateChapterFunc(mangaID, &creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, chapter)
}

func (h *catalogHandler) handleDetailChapter(c *gin.Context) {
	chapter, err := DetailChapterFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, chapter)
}

func (h *catalogHandler) handleUpdateChapter(c *gin.Context) {
	id := parseIDParam(c, "id")
	updation := ChapterUpdation{}
	if err := c.ShouldBindBodyWith(&updation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	chapter, err := UpdateChapterFunc(id, &updation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, chapter)
}

func (h *catalogHandler) handleDeleteChapter(c *gin.Context) {
	if err := DeleteChapterFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func parseIDParam(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}
