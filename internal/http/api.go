package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"threadline/internal/domain"
	"threadline/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	posts     service.PostService
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewHandler(users service.UserService, posts service.PostService, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		users:     users,
		posts:     posts,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		users := api.Group("/users")
		{
			users.POST("/signup", h.signup)
			users.POST("/login", h.login)
			users.POST("/logout", h.logout)
			users.GET("/profile/:query", h.getProfile)
			users.PUT("/update/:id", h.requireAuth(), h.updateProfile)
			users.POST("/follow/:id", h.requireAuth(), h.followUnfollow)
			users.PUT("/freeze", h.requireAuth(), h.freeze)
		}

		posts := api.Group("/posts")
		{
			posts.POST("", h.requireAuth(), h.createPost)
			posts.GET("/feed", h.requireAuth(), h.getFeed)
			posts.GET("/user/:username", h.getUserPosts)
			posts.GET("/:id", h.getPost)
			posts.DELETE("/:id", h.requireAuth(), h.deletePost)
			posts.PUT("/like/:id", h.requireAuth(), h.toggleLike)
			posts.PUT("/reply/:id", h.requireAuth(), h.addReply)
		}

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Username, req.Email, req.Password)
	if err != nil {
		mapError(c, err)
		return
	}

	if err := h.issueCredential(c, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, userToResponse(user))
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		mapError(c, err)
		return
	}

	if err := h.issueCredential(c, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) logout(c *gin.Context) {
	h.clearCredential(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.users.GetProfile(c.Request.Context(), c.Param("query"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

type updateProfileRequest struct {
	Name             string `json:"name"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Bio              string `json:"bio"`
	ImageRef         string `json:"image_ref"`
	ImageData        string `json:"image_data"`
	ImageContentType string `json:"image_content_type"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image, err := decodeImage(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), actingUser(c), c.Param("id"), service.UpdateProfileInput{
		Name:             req.Name,
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		Bio:              req.Bio,
		ImageRef:         req.ImageRef,
		Image:            image,
		ImageContentType: req.ImageContentType,
	})
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) followUnfollow(c *gin.Context) {
	state, err := h.users.FollowUnfollow(c.Request.Context(), actingUser(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *Handler) freeze(c *gin.Context) {
	if err := h.users.Freeze(c.Request.Context(), actingUser(c)); err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frozen": true})
}

type createPostRequest struct {
	PostedBy         string `json:"posted_by" binding:"required"`
	Text             string `json:"text" binding:"required"`
	ImageRef         string `json:"image_ref"`
	ImageData        string `json:"image_data"`
	ImageContentType string `json:"image_content_type"`
}

func (h *Handler) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image, err := decodeImage(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.CreatePost(c.Request.Context(), actingUser(c), service.CreatePostInput{
		PostedBy:         req.PostedBy,
		Text:             req.Text,
		ImageRef:         req.ImageRef,
		Image:            image,
		ImageContentType: req.ImageContentType,
	})
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postToResponse(*post))
}

func (h *Handler) getPost(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(*post))
}

func (h *Handler) deletePost(c *gin.Context) {
	if err := h.posts.DeletePost(c.Request.Context(), actingUser(c), c.Param("id")); err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) toggleLike(c *gin.Context) {
	state, err := h.posts.ToggleLike(c.Request.Context(), actingUser(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

type replyRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) addReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.posts.AddReply(c.Request.Context(), actingUser(c), c.Param("id"), req.Text)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, replyToResponse(*reply))
}

func (h *Handler) getFeed(c *gin.Context) {
	feed, err := h.posts.GetFeed(c.Request.Context(), actingUser(c))
	if err != nil {
		mapError(c, err)
		return
	}

	resp := make([]PostResponse, len(feed))
	for i := range feed {
		resp[i] = postToResponse(feed[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUserPosts(c *gin.Context) {
	posts, err := h.posts.GetUserPosts(c.Request.Context(), c.Param("username"))
	if err != nil {
		mapError(c, err)
		return
	}

	resp := make([]PostResponse, len(posts))
	for i := range posts {
		resp[i] = postToResponse(posts[i])
	}
	c.JSON(http.StatusOK, resp)
}

// mapError translates the shared error taxonomy into distinct statuses so
// callers can tell not-found from not-authorized from bad input.
func mapError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSelfReference),
		errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func decodeImage(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(data)
}

type UserResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Bio             string   `json:"bio"`
	ProfileImageRef string   `json:"profile_image_ref,omitempty"`
	IsFrozen        bool     `json:"is_frozen"`
	Following       []string `json:"following"`
	Followers       []string `json:"followers"`
	CreatedAt       string   `json:"created_at"`
}

type PostResponse struct {
	ID        string          `json:"id"`
	PostedBy  string          `json:"posted_by"`
	Text      string          `json:"text"`
	ImageRef  string          `json:"image_ref,omitempty"`
	Likes     []string        `json:"likes"`
	Replies   []ReplyResponse `json:"replies"`
	CreatedAt string          `json:"created_at"`
}

type ReplyResponse struct {
	AuthorID       string `json:"author_id"`
	AuthorUsername string `json:"author_username"`
	AuthorImageRef string `json:"author_image_ref,omitempty"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
}

func userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:              user.ID,
		Name:            user.Name,
		Username:        user.Username,
		Email:           user.Email,
		Bio:             user.Bio,
		ProfileImageRef: user.ProfileImageRef,
		IsFrozen:        user.IsFrozen,
		Following:       user.Following,
		Followers:       user.Followers,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
	}
	if resp.Following == nil {
		resp.Following = []string{}
	}
	if resp.Followers == nil {
		resp.Followers = []string{}
	}
	return resp
}

func postToResponse(post domain.Post) PostResponse {
	resp := PostResponse{
		ID:        post.ID,
		PostedBy:  post.AuthorID,
		Text:      post.Text,
		ImageRef:  post.ImageRef,
		Likes:     post.Likes,
		Replies:   make([]ReplyResponse, len(post.Replies)),
		CreatedAt: post.CreatedAt.Format(time.RFC3339),
	}
	if resp.Likes == nil {
		resp.Likes = []string{}
	}
	for i := range post.Replies {
		resp.Replies[i] = replyToResponse(post.Replies[i])
	}
	return resp
}

func replyToResponse(reply domain.Reply) ReplyResponse {
	return ReplyResponse{
		AuthorID:       reply.AuthorID,
		AuthorUsername: reply.AuthorUsername,
		AuthorImageRef: reply.AuthorImageRef,
		Text:           reply.Text,
		CreatedAt:      reply.CreatedAt.Format(time.RFC3339),
	}
}
