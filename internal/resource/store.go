// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resource

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/wire"
)

// Texture is a stored, typed texture resource; its pixel bytes live in
// the arena.
type Texture struct {
	ID     idhash.ID
	Format wire.TextureFormat
	Data   Slice
}

// Material references texture ids; it carries no arena bytes of its own.
type Material struct {
	ID         idhash.ID
	DiffuseID  idhash.ID
	SpecularID idhash.ID
	NormalID   idhash.ID
}

// Mesh references a slice into its parent model's index array and an
// index into the parent's material list.
type Mesh struct {
	IndexOffset   uint32
	IndexLength   uint32
	MaterialIndex uint32
}

// Model is a stored model resource: counts plus its materials and
// meshes (small, kept as plain slices — geometry bytes stream in
// separately via GEOM_UPDATE, not through ResourceStore).
type Model struct {
	ID            idhash.ID
	VertexCount   uint32
	IndexCount    uint32
	Materials     []idhash.ID
	Meshes        []Mesh
}

// Shader is a stored shader resource; its code bytes live in the arena.
type Shader struct {
	ID         idhash.ID
	Stage      wire.ShaderStage
	PassNumber uint32
	Code       Slice
}

// PointLight is a stored point light; lights are small and kept inline
// rather than in the arena.
type PointLight struct {
	ID        idhash.ID
	Position  [3]float32
	Color     [3]float32
	Intensity float32
	DynMask   uint8
}

// sentinel texture names, built in at store construction as defaults:
// white diffuse, black specular, up-vector normal.
const (
	sentinelDiffuseName  = "__default_diffuse"
	sentinelSpecularName = "__default_specular"
	sentinelNormalName   = "__default_normal"
)

// Store is the deduplicated, id-keyed resource store shared across
// every connection.
type Store struct {
	mu sync.RWMutex

	arena *Arena

	textures  map[idhash.ID]Texture
	materials map[idhash.ID]Material
	models    map[idhash.ID]Model
	shaders   map[idhash.ID]Shader
	lights    []PointLight

	sentinelDiffuse  idhash.ID
	sentinelSpecular idhash.ID
	sentinelNormal   idhash.ID

	logger *slog.Logger
}

// New creates an empty Store pre-seeded with the three sentinel default
// textures used to paper over missing material dependencies.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		arena:     NewArena(0),
		textures:  make(map[idhash.ID]Texture),
		materials: make(map[idhash.ID]Material),
		models:    make(map[idhash.ID]Model),
		shaders:   make(map[idhash.ID]Shader),
		logger:    logger,
	}
	s.sentinelDiffuse = idhash.Of(sentinelDiffuseName)
	s.sentinelSpecular = idhash.Of(sentinelSpecularName)
	s.sentinelNormal = idhash.Of(sentinelNormalName)

	s.insertTextureLocked(s.sentinelDiffuse, wire.FormatRGBA, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	s.insertTextureLocked(s.sentinelSpecular, wire.FormatRGBA, []byte{0x00, 0x00, 0x00, 0xFF})
	s.insertTextureLocked(s.sentinelNormal, wire.FormatRGBA, []byte{0x80, 0x80, 0xFF, 0xFF})
	return s
}

// InsertTexture inserts a texture resource. A duplicate id is a no-op
// with a warning: resource insertion is one-shot.
func (s *Store) InsertTexture(id idhash.ID, format wire.TextureFormat, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.textures[id]; exists {
		s.logger.Warn("duplicate texture insert ignored", "id", id)
		return
	}
	s.insertTextureLocked(id, format, data)
}

func (s *Store) insertTextureLocked(id idhash.ID, format wire.TextureFormat, data []byte) {
	s.textures[id] = Texture{ID: id, Format: format, Data: s.arena.Alloc(data)}
}

// InsertMaterial inserts a material resource. It does not check or log
// whether the referenced texture ids exist; an unresolved reference is
// resolved lazily via sentinel fallback at lookup time.
func (s *Store) InsertMaterial(m Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.materials[m.ID]; exists {
		s.logger.Warn("duplicate material insert ignored", "id", m.ID)
		return
	}
	s.materials[m.ID] = m
}

// InsertModel inserts a model resource.
func (s *Store) InsertModel(m Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.models[m.ID]; exists {
		s.logger.Warn("duplicate model insert ignored", "id", m.ID)
		return nil
	}
	for _, mesh := range m.Meshes {
		if mesh.IndexOffset+mesh.IndexLength > m.IndexCount {
			return fmt.Errorf("resource: model %d mesh index range [%d,%d) exceeds index count %d",
				m.ID, mesh.IndexOffset, mesh.IndexOffset+mesh.IndexLength, m.IndexCount)
		}
	}
	s.models[m.ID] = m
	return nil
}

// InsertShader inserts a shader resource.
func (s *Store) InsertShader(id idhash.ID, stage wire.ShaderStage, pass uint32, code []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.shaders[id]; exists {
		s.logger.Warn("duplicate shader insert ignored", "id", id)
		return
	}
	s.shaders[id] = Shader{ID: id, Stage: stage, PassNumber: pass, Code: s.arena.Alloc(code)}
}

// InsertPointLight inserts a point light resource.
func (s *Store) InsertPointLight(l PointLight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.lights {
		if existing.ID == l.ID {
			s.logger.Warn("duplicate point light insert ignored", "id", l.ID)
			return
		}
	}
	s.lights = append(s.lights, l)
}

// Texture returns the texture for id and its bytes; the final result is
// false if id is not found. It does not fall back to a sentinel —
// TextureOrDefault does.
func (s *Store) Texture(id idhash.ID) (Texture, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.textures[id]
	if !ok {
		return Texture{}, nil, false
	}
	return t, s.arena.View(t.Data), true
}

// TextureOrDefault resolves id to its stored texture bytes, falling
// back to the given sentinel id when id is absent.
func (s *Store) TextureOrDefault(id, sentinel idhash.ID) []byte {
	if _, data, ok := s.Texture(id); ok {
		return data
	}
	_, data, _ := s.Texture(sentinel)
	return data
}

// SentinelDiffuse, SentinelSpecular, SentinelNormal are the ids of the
// three built-in default textures.
func (s *Store) SentinelDiffuse() idhash.ID  { return s.sentinelDiffuse }
func (s *Store) SentinelSpecular() idhash.ID { return s.sentinelSpecular }
func (s *Store) SentinelNormal() idhash.ID   { return s.sentinelNormal }

// Material looks up a material by id.
func (s *Store) Material(id idhash.ID) (Material, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.materials[id]
	return m, ok
}

// Model looks up a model by id.
func (s *Store) Model(id idhash.ID) (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	return m, ok
}

// Shader returns the shader for id and its code bytes.
func (s *Store) Shader(id idhash.ID) (Shader, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shaders[id]
	if !ok {
		return Shader{}, nil, false
	}
	return sh, s.arena.View(sh.Code), true
}

// PointLights returns a copy of the current point light list.
func (s *Store) PointLights() []PointLight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PointLight, len(s.lights))
	copy(out, s.lights)
	return out
}

// PointLight looks up a single point light by id.
func (s *Store) PointLight(id idhash.ID) (PointLight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lights {
		if l.ID == id {
			return l, true
		}
	}
	return PointLight{}, false
}

// UpdatePointLight overwrites the color and intensity of an already
// stored light in place. Unlike InsertPointLight (one-shot, dedup) this
// applies a client-side POINT_LIGHT_UPDATE chunk to the light's mutable
// fields; position and dyn-mask never change after insertion.
// Reports false if id is not yet known (the light has not been
// delivered through resource exchange).
func (s *Store) UpdatePointLight(id idhash.ID, color [3]float32, intensity float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lights {
		if s.lights[i].ID == id {
			s.lights[i].Color = color
			s.lights[i].Intensity = intensity
			return true
		}
	}
	return false
}

// ShaderIDs returns the ids of every stored shader, in no particular
// order; shaders carry no per-model linkage in this schema.
func (s *Store) ShaderIDs() []idhash.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]idhash.ID, 0, len(s.shaders))
	for id := range s.shaders {
		out = append(out, id)
	}
	return out
}

// HasModel reports whether a model with the given id has been inserted.
func (s *Store) HasModel(id idhash.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[id]
	return ok
}
