package qdrant

import (
	"context"
	"errors"
	"slices"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/cureat/cureat/internal/core/vectorstore"
)

// fakePoints は Qdrant のポイント操作をメモリ上で再現する
type fakePoints struct {
	vectors     map[uint64][]float32
	lastLimit   uint64
	scrollCalls int
	err         error
}

func newFakePoints() *fakePoints {
	return &fakePoints{vectors: make(map[uint64][]float32)}
}

func output(v []float32) *pb.VectorsOutput {
	return &pb.VectorsOutput{VectorsOptions: &pb.VectorsOutput_Vector{Vector: &pb.VectorOutput{Data: v}}}
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range in.GetPoints() {
		f.vectors[p.GetId().GetNum()] = p.GetVectors().GetVector().GetData()
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	for _, id := range in.GetPoints().GetPoints().GetIds() {
		delete(f.vectors, id.GetNum())
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Get(_ context.Context, in *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	resp := &pb.GetResponse{}
	for _, id := range in.GetIds() {
		if v, ok := f.vectors[id.GetNum()]; ok {
			resp.Result = append(resp.Result, &pb.RetrievedPoint{Id: id, Vectors: output(v)})
		}
	}
	return resp, nil
}

func (f *fakePoints) sortedIDs() []uint64 {
	ids := make([]uint64, 0, len(f.vectors))
	for id := range f.vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (f *fakePoints) Scroll(_ context.Context, in *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.scrollCalls++
	ids := f.sortedIDs()
	start := 0
	if in.GetOffset() != nil {
		start, _ = slices.BinarySearch(ids, in.GetOffset().GetNum())
	}
	end := min(start+int(in.GetLimit()), len(ids))

	resp := &pb.ScrollResponse{}
	for _, id := range ids[start:end] {
		resp.Result = append(resp.Result, &pb.RetrievedPoint{Id: pointID(int64(id)), Vectors: output(f.vectors[id])})
	}
	if end < len(ids) {
		resp.NextPageOffset = pointID(int64(ids[end]))
	}
	return resp, nil
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.lastLimit = in.GetLimit()
	resp := &pb.SearchResponse{}
	for _, id := range f.sortedIDs() {
		resp.Result = append(resp.Result, &pb.ScoredPoint{Id: pointID(int64(id)), Vectors: output(f.vectors[id])})
	}
	return resp, nil
}

type fakeCollections struct {
	existing map[string]uint64
	created  []*pb.CreateCollection
}

func (f *fakeCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	resp := &pb.ListCollectionsResponse{}
	for name := range f.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = append(f.created, in)
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Get(_ context.Context, in *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	return &pb.GetCollectionInfoResponse{
		Result: &pb.CollectionInfo{
			Config: &pb.CollectionConfig{
				Params: &pb.CollectionParams{
					VectorsConfig: &pb.VectorsConfig{
						Config: &pb.VectorsConfig_Params{
							Params: &pb.VectorParams{Size: f.existing[in.GetCollectionName()]},
						},
					},
				},
			},
		},
	}, nil
}

func TestEnsureCollection(t *testing.T) {
	collections := &fakeCollections{existing: map[string]uint64{}}
	s := newWithClients(newFakePoints(), collections, "restaurants", 3)
	require.NoError(t, s.EnsureCollection(context.Background()))
	require.Len(t, collections.created, 1)
	assert.Equal(t, uint64(3), collections.created[0].GetVectorsConfig().GetParams().GetSize())
	assert.Equal(t, pb.Distance_Cosine, collections.created[0].GetVectorsConfig().GetParams().GetDistance())

	collections = &fakeCollections{existing: map[string]uint64{"restaurants": 3}}
	s = newWithClients(newFakePoints(), collections, "restaurants", 3)
	require.NoError(t, s.EnsureCollection(context.Background()))
	assert.Empty(t, collections.created)

	s = newWithClients(newFakePoints(), collections, "restaurants", 1536)
	err := s.EnsureCollection(context.Background())
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newWithClients(newFakePoints(), &fakeCollections{}, "restaurants", 2)

	require.NoError(t, s.Upsert(ctx, 7, []float32{1, 0}))
	require.NoError(t, s.Upsert(ctx, 7, []float32{0, 1}))

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, got)

	err = s.Upsert(ctx, 8, []float32{1, 0, 0})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	_, err = s.Get(ctx, 8)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)

	require.NoError(t, s.Delete(ctx, 7))
	require.NoError(t, s.Delete(ctx, 7))
	_, err = s.Get(ctx, 7)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestStoreAllPaginates(t *testing.T) {
	ctx := context.Background()
	points := newFakePoints()
	s := newWithClients(points, &fakeCollections{}, "restaurants", 1)

	for id := int64(scrollPageSize + 10); id >= 1; id-- {
		require.NoError(t, s.Upsert(ctx, id, []float32{float32(id)}))
	}

	entries, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, scrollPageSize+10)
	assert.Equal(t, 2, points.scrollCalls)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.True(t, slices.IsSortedFunc(entries, func(a, b vectorstore.Entry) int { return int(a.ID - b.ID) }))
}

func TestStoreSearch(t *testing.T) {
	ctx := context.Background()
	points := newFakePoints()
	s := newWithClients(points, &fakeCollections{}, "restaurants", 2)
	require.NoError(t, s.Upsert(ctx, 1, []float32{1, 0}))

	entries, err := s.Search(ctx, []float32{1, 0}, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), points.lastLimit)
	assert.Equal(t, []vectorstore.Entry{{ID: 1, Vector: []float32{1, 0}}}, entries)

	_, err = s.Search(ctx, []float32{1}, 8)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestStoreWrapsTransportErrors(t *testing.T) {
	points := newFakePoints()
	points.err = errors.New("unavailable")
	s := newWithClients(points, &fakeCollections{}, "restaurants", 1)

	_, err := s.All(context.Background())
	assert.ErrorContains(t, err, "qdrant: scroll")
	assert.Error(t, s.Upsert(context.Background(), 1, []float32{1}))
}
