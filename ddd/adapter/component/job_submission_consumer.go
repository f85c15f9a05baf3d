package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/segmentio/kafka-go"

	appsvc "media-pipeline-service/ddd/application/app"
	cqe "media-pipeline-service/ddd/application/cqe"
	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/config"
	pkgkafka "media-pipeline-service/pkg/kafka"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/middleware"
)

type JobSubmissionConsumerPlugin struct{}

func (p *JobSubmissionConsumerPlugin) Name() string { return "jobSubmissionConsumer" }

func (p *JobSubmissionConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := config.GetGlobalConfig()
	if deps != nil && deps.Config != nil {
		cfg = deps.Config
	}
	client := pkgkafka.DefaultClient()
	if cfg == nil || !client.Enabled() || cfg.Kafka.Topics.JobSubmissions == "" {
		return nil
	}
	var app appsvc.JobApp
	if deps != nil {
		if v, ok := deps.JobAppService.(appsvc.JobApp); ok {
			app = v
		}
	}
	if app == nil {
		app = appsvc.DefaultJobApp()
	}
	return &jobSubmissionConsumer{
		app:                 app,
		verifier:            appsvc.DefaultIdentityVerifier(),
		topic:               cfg.Kafka.Topics.JobSubmissions,
		commitOnDecodeError: cfg.Kafka.CommitOnDecodeError,
		newReader: func() messageReader {
			return client.Reader(cfg.Kafka.Topics.JobSubmissions, client.GroupID())
		},
	}
}

// messageReader kafka.Reader 的子集
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SubmissionMessage 提交主题的消息体，token/guest_token 与 HTTP 头含义相同
type SubmissionMessage struct {
	Source     string        `json:"source"`
	Quality    string        `json:"quality"`
	Steps      []string      `json:"steps"`
	Options    vo.JobOptions `json:"options"`
	Token      string        `json:"token"`
	GuestToken string        `json:"guest_token"`
}

type jobSubmissionConsumer struct {
	app                 appsvc.JobApp
	verifier            gateway.IdentityVerifier
	topic               string
	commitOnDecodeError bool
	newReader           func() messageReader
	ctx                 context.Context
	cancel              context.CancelFunc
	done                chan struct{}
}

func (c *jobSubmissionConsumer) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.done = make(chan struct{})
	reader := c.newReader()
	go func() {
		defer close(c.done)
		defer reader.Close()
		logger.Infof("Kafka consumer started topic=%s", c.topic)
		c.consume(reader)
	}()
	return nil
}

func (c *jobSubmissionConsumer) consume(reader messageReader) {
	for {
		msg, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
				logger.Debug("Kafka reader EOF")
			} else {
				logger.Warnf("Kafka read error error=%s", err.Error())
			}
			continue
		}
		if err := c.handle(c.ctx, msg.Value); err != nil {
			var decodeErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if (errors.As(err, &decodeErr) || errors.As(err, &typeErr)) && !c.commitOnDecodeError {
				logger.Warnf("Kafka message undecodable, offset left uncommitted partition=%d offset=%d error=%v", msg.Partition, msg.Offset, err)
				continue
			}
		}
		if err := reader.CommitMessages(c.ctx, msg); err != nil && c.ctx.Err() == nil {
			logger.Warnf("Kafka commit failed offset=%d error=%v", msg.Offset, err)
		}
	}
}

// handle 解码并走与 HTTP 相同的提交流程，业务拒绝只记录日志
func (c *jobSubmissionConsumer) handle(ctx context.Context, value []byte) error {
	var m SubmissionMessage
	if err := json.Unmarshal(value, &m); err != nil {
		logger.Warnf("Kafka message unmarshal error error=%s", err.Error())
		return err
	}
	authorization := ""
	if m.Token != "" {
		authorization = "Bearer " + m.Token
	}
	identity := middleware.ResolveIdentity(c.verifier, authorization, m.GuestToken, "kafka")
	out, err := c.app.SubmitJob(ctx, identity, &cqe.SubmitJobReq{
		Source:  m.Source,
		Quality: m.Quality,
		Steps:   m.Steps,
		Options: m.Options,
	})
	if err != nil {
		logger.Warnf("SubmitJob from kafka rejected error=%s source=%s identity=%s", err.Error(), m.Source, identity.QuotaKey())
		return err
	}
	logger.Infof("Kafka submission accepted job_uuid=%s identity=%s", out.JobID, identity.QuotaKey())
	return nil
}

func (c *jobSubmissionConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
	return nil
}

func (c *jobSubmissionConsumer) GetName() string { return "jobSubmissionConsumer" }
