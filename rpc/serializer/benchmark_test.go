package serializer

import (
	"testing"

	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/google/uuid"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	tokens := make([]aft.NodeToken, 256)
	for i := range tokens {
		tokens[i] = aft.NodeToken(i + 1)
	}

	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"FindType": {
			MsgType: common.MsgTFindType,
			ID:      uuid.New(),
			Name:    "Counter",
		},
		"ReserveTokens": {
			MsgType: common.MsgTReserveTokens,
			ID:      uuid.New(),
			Count:   64,
		},
		"SmallOperation": {
			MsgType: common.MsgTOperation,
			ID:      uuid.New(),
			Doc:     &codec.OperationDoc{Kind: aft.KindNodeInfo.String(), Tokens: tokens[:1]},
		},
		"LargeOperation": {
			MsgType: common.MsgTOperation,
			ID:      uuid.New(),
			Doc:     &codec.OperationDoc{Kind: aft.KindNodeInfo.String(), Tokens: tokens},
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			ID:      uuid.New(),
			Code:    aft.RetCValidationFailed,
			Err:     "validation failed for token 1234: unknown token (node 1234: next 99 is not a valid token)",
			Reason:  aft.ErrUnknownToken.Error(),
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes")
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var out common.Message
					if err := serializer.Deserialize(data, &out); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
