package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
)

// RouteKey - всё, от чего зависит результат поиска одного соединения
type RouteKey struct {
	Graph             string // отпечаток графа ресурсов
	Tree              string // отпечаток дерева маршрута (узлы и их R/Tdel)
	Sink              int32
	BBox              [6]int32 // xmin, xmax, ymin, ymax, layer min, layer max
	Cost              []float64
	Congestion        string // отпечаток цен узлов, видимых поиску в рамке
	Mode              string // normal, high_fanout
}

// String строит ключ вида route:<graph16>:<hash16>; префикс по графу
// позволяет инвалидировать всё, что посчитано на устройстве
func (k RouteKey) String() string {
	h := NewHasher()
	h.String(k.Tree)
	h.Int64(int64(k.Sink))
	for _, v := range k.BBox {
		h.Int64(int64(v))
	}
	for _, v := range k.Cost {
		h.Float64(v)
	}
	h.String(k.Congestion)
	h.String(k.Mode)
	return fmt.Sprintf("%s%s:%s", routePrefix, shortGraph(k.Graph), h.Short())
}

const routePrefix = "route:"

// GraphPrefix - префикс всех ключей устройства
func GraphPrefix(graph string) string {
	return routePrefix + shortGraph(graph) + ":"
}

func shortGraph(graph string) string {
	if len(graph) > 16 {
		return graph[:16]
	}
	return graph
}

// Hasher накапливает sha256 по бинарному представлению значений
type Hasher struct {
	buf [8]byte
	sum []byte
	h   hash.Hash
}

// NewHasher создаёт пустой Hasher
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Int64 добавляет целое
func (h *Hasher) Int64(v int64) {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	_, _ = h.h.Write(h.buf[:]) //nolint:errcheck // hash.Hash.Write не возвращает ошибок
}

// Float64 добавляет вещественное по битовому представлению
func (h *Hasher) Float64(v float64) {
	h.Int64(int64(math.Float64bits(v)))
}

// Float32 добавляет float32 по битовому представлению
func (h *Hasher) Float32(v float32) {
	h.Int64(int64(math.Float32bits(v)))
}

// String добавляет строку с длиной, чтобы "ab"+"c" != "a"+"bc"
func (h *Hasher) String(s string) {
	h.Int64(int64(len(s)))
	_, _ = h.h.Write([]byte(s)) //nolint:errcheck // hash.Hash.Write не возвращает ошибок
}

// Hex возвращает полный хеш
func (h *Hasher) Hex() string {
	if h.sum == nil {
		h.sum = h.h.Sum(nil)
	}
	return hex.EncodeToString(h.sum)
}

// Short возвращает первые 16 hex символов
func (h *Hasher) Short() string {
	return h.Hex()[:16]
}
