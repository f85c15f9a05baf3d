package rpccodec

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name 内容子类型，客户端需使用 grpc.CallContentSubtype(Name)
const Name = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec 以 JSON 编码 gRPC 消息，服务端消息为普通 Go 结构体
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (Codec) Name() string { return Name }
