package dto

// UpsertAvatarCompositeRequest stores the rendered layer stack of a subject
// Image carries base64 PNG bytes; when omitted the server may render the stack itself
type UpsertAvatarCompositeRequest struct {
	SubjectID string   `json:"-" validate:"required,max=128"`
	Context   string   `json:"-" validate:"required,max=64"`
	LayerIDs  []string `json:"layer_ids" validate:"required,min=1,max=32,dive,max=255"`
	Image     []byte   `json:"image_base64,omitempty"`
	Width     int      `json:"width,omitempty" validate:"omitempty,min=1,max=8192"`
	Height    int      `json:"height,omitempty" validate:"omitempty,min=1,max=8192"`
	Actor     string   `json:"-"`
}

// AvatarCompositeDTO is one cached avatar composite
type AvatarCompositeDTO struct {
	SubjectID  string   `json:"subject_id"`
	Context    string   `json:"context"`
	AvatarHash string   `json:"avatar_hash"`
	LayerIDs   []string `json:"layer_ids"`
	PublicURL  string   `json:"public_url"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	UpdatedAt  string   `json:"updated_at"`
	Cached     bool     `json:"cached"`
}

// AvatarSlotDTO is the avatar rectangle inside a scene
type AvatarSlotDTO struct {
	X      int `json:"x" validate:"min=0"`
	Y      int `json:"y" validate:"min=0"`
	Width  int `json:"width" validate:"min=1"`
	Height int `json:"height" validate:"min=1"`
}

// UpsertSceneTemplateRequest creates or edits a scene template
type UpsertSceneTemplateRequest struct {
	ID            string        `json:"-" validate:"required,max=128"`
	Name          string        `json:"name" validate:"required,max=255"`
	BackgroundKey string        `json:"background_key" validate:"required,max=512"`
	ForegroundKey *string       `json:"foreground_key,omitempty" validate:"omitempty,max=512"`
	AvatarSlot    AvatarSlotDTO `json:"avatar_slot"`
	Width         int           `json:"width" validate:"omitempty,min=1,max=8192"`
	Height        int           `json:"height" validate:"omitempty,min=1,max=8192"`
	Actor         string        `json:"-"`
}

// SceneTemplateDTO is a scene template with its current layer hash
type SceneTemplateDTO struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	BackgroundKey string        `json:"background_key"`
	ForegroundKey *string       `json:"foreground_key,omitempty"`
	AvatarSlot    AvatarSlotDTO `json:"avatar_slot"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	TemplateHash  string        `json:"template_hash"`
	UpdatedAt     string        `json:"updated_at"`
}

// UpsertSceneTemplateResponse reports how many cached scenes were invalidated
type UpsertSceneTemplateResponse struct {
	Message           string           `json:"message"`
	Template          SceneTemplateDTO `json:"template"`
	InvalidatedScenes int64            `json:"invalidated_scenes"`
	LayersChanged     bool             `json:"layers_changed"`
}

// ComposeSceneRequest asks for the composed scene of a subject on a template
type ComposeSceneRequest struct {
	SceneTemplateID string `json:"-" validate:"required,max=128"`
	SubjectID       string `json:"-" validate:"required,max=128"`
	AvatarContext   string `json:"avatar_context,omitempty" validate:"omitempty,max=64"`
}

// SceneLayersDTO are the inputs a client needs to render a scene itself
type SceneLayersDTO struct {
	BackgroundKey  string        `json:"background_key"`
	BackgroundURL  string        `json:"background_url"`
	ForegroundKey  *string       `json:"foreground_key,omitempty"`
	ForegroundURL  *string       `json:"foreground_url,omitempty"`
	AvatarURL      *string       `json:"avatar_url,omitempty"`
	AvatarLayerIDs []string      `json:"avatar_layer_ids,omitempty"`
	AvatarSlot     AvatarSlotDTO `json:"avatar_slot"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
}

// ComposeSceneResponse either points at a cached render or returns the raw layers
type ComposeSceneResponse struct {
	Cached         bool            `json:"cached"`
	PublicURL      *string         `json:"public_url,omitempty"`
	LastAccessedAt *string         `json:"last_accessed_at,omitempty"`
	AvatarHash     string          `json:"avatar_hash"`
	TemplateHash   string          `json:"template_hash"`
	Layers         *SceneLayersDTO `json:"layers,omitempty"`
}

// CacheComposedSceneRequest stores a client-rendered scene for the given input hashes
type CacheComposedSceneRequest struct {
	SceneTemplateID string `json:"-" validate:"required,max=128"`
	SubjectID       string `json:"-" validate:"required,max=128"`
	AvatarContext   string `json:"avatar_context,omitempty" validate:"omitempty,max=64"`
	AvatarHash      string `json:"avatar_hash" validate:"required,len=64,hexadecimal"`
	TemplateHash    string `json:"template_hash" validate:"required,len=64,hexadecimal"`
	Image           []byte `json:"image_base64" validate:"required"`
	Actor           string `json:"-"`
}

// SceneCompositeDTO is one cached scene composite
type SceneCompositeDTO struct {
	SceneTemplateID string `json:"scene_template_id"`
	SubjectID       string `json:"subject_id"`
	AvatarHash      string `json:"avatar_hash"`
	TemplateHash    string `json:"template_hash"`
	PublicURL       string `json:"public_url"`
	LastAccessedAt  string `json:"last_accessed_at"`
}
