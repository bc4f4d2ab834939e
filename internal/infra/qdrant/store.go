// Package qdrant は Qdrant をレストランベクトルの保存先として使う vectorstore.Store 実装
package qdrant

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cureat/cureat/internal/core/vectorstore"
)

const scrollPageSize = 256

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
}

// Store は Qdrant のコレクション1つをベクトルストアとして扱う
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dimension   int
}

// New は gRPC アドレスに接続し、コレクションを用意した Store を返す
func New(ctx context.Context, addr, collection string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("qdrant: invalid dimension %d", dimension)
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	s := &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimension:   dimension,
	}
	if err := s.EnsureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func newWithClients(points pointsAPI, collections collectionsAPI, collection string, dimension int) *Store {
	return &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		dimension:   dimension,
	}
}

// Close は gRPC 接続を閉じる
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection はコサイン距離のコレクションを作成する。
// 既存コレクションの次元が異なる場合はエラーを返す。
func (s *Store) EnsureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() != s.collection {
			continue
		}
		info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
		if err != nil {
			return fmt.Errorf("qdrant: get collection %s: %w", s.collection, err)
		}
		size := int(info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if size != s.dimension {
			return fmt.Errorf("qdrant: collection %s: %w", s.collection,
				&vectorstore.DimensionMismatchError{Expected: s.dimension, Actual: size})
		}
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Dimension はコレクションの次元を返す
func (s *Store) Dimension() int {
	return s.dimension
}

// Upsert はベクトルを保存する
func (s *Store) Upsert(ctx context.Context, id int64, vector []float32) error {
	if err := vectorstore.CheckDimension(s.dimension, vector); err != nil {
		return err
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pointID(id),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: slices.Clone(vector)},
				},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d: %w", id, err)
	}
	return nil
}

// Get は保存済みベクトルを返す
func (s *Store) Get(ctx context.Context, id int64) ([]float32, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            []*pb.PointId{pointID(id)},
		WithVectors:    withVectors(),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: get %d: %w", id, err)
	}
	if len(resp.GetResult()) == 0 {
		return nil, vectorstore.ErrNotFound
	}
	return resp.GetResult()[0].GetVectors().GetVector().GetData(), nil
}

// All はコレクション全体をスクロールしてID昇順で返す
func (s *Store) All(ctx context.Context) ([]vectorstore.Entry, error) {
	var (
		entries []vectorstore.Entry
		offset  *pb.PointId
	)
	limit := uint32(scrollPageSize)
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithVectors:    withVectors(),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: scroll: %w", err)
		}
		for _, p := range resp.GetResult() {
			entries = append(entries, vectorstore.Entry{
				ID:     int64(p.GetId().GetNum()),
				Vector: p.GetVectors().GetVector().GetData(),
			})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	slices.SortFunc(entries, func(a, b vectorstore.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return entries, nil
}

// Search はHNSWで近傍候補を取得する
func (s *Store) Search(ctx context.Context, query []float32, limit int) ([]vectorstore.Entry, error) {
	if err := vectorstore.CheckDimension(s.dimension, query); err != nil {
		return nil, err
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(limit),
		WithVectors:    withVectors(),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	entries := make([]vectorstore.Entry, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		entries = append(entries, vectorstore.Entry{
			ID:     int64(p.GetId().GetNum()),
			Vector: p.GetVectors().GetVector().GetData(),
		})
	}
	return entries, nil
}

// Delete はベクトルを削除する
func (s *Store) Delete(ctx context.Context, id int64) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete %d: %w", id, err)
	}
	return nil
}

func pointID(id int64) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(id)}}
}

func withVectors() *pb.WithVectorsSelector {
	return &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}}
}

var (
	_ vectorstore.Store    = (*Store)(nil)
	_ vectorstore.Searcher = (*Store)(nil)
)
