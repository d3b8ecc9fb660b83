package services

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"pso-monitor-service/config"
	"pso-monitor-service/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// CommandGroup 返回某用户的指令投递组名
func CommandGroup(email string) string {
	return "commands/" + models.NormalizeEmail(email)
}

// InterfaceMessagingService 点对点消息通道接口：把指令投递到现场端设备
type InterfaceMessagingService interface {
	Connect() error
	Disconnect()
	SendToGroup(group string, payload interface{}) error
}

// MessagingService 基于MQTT的消息通道实现
type MessagingService struct {
	Config         *config.Config
	Client         mqtt.Client
	IsConnected    bool
	connectedMutex sync.RWMutex // 保护IsConnected字段的读写
	PublishMutex   sync.Mutex   // 保护MQTT消息发布
}

// NewMessagingService 创建一个新的MQTT消息通道
func NewMessagingService(cfg *config.Config) InterfaceMessagingService {
	service := &MessagingService{
		Config:      cfg,
		IsConnected: false,
	}

	service.setupMQTTClient()

	return service
}

// setupMQTTClient 设置MQTT客户端
func (s *MessagingService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBrokerURL)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s-%d", s.Config.MQTTClientID, uuid.New().String()[:8], time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		log.Printf("[MQTT] 收到未处理的消息: topic=%s", msg.Topic())
	})

	// 添加用户名和密码
	if s.Config.MQTTUsername != "" {
		opts.SetUsername(s.Config.MQTTUsername)
		opts.SetPassword(s.Config.MQTTPassword)
	}

	// 添加TLS配置，支持SSL连接
	if strings.HasPrefix(s.Config.MQTTBrokerURL, "ssl://") || strings.HasPrefix(s.Config.MQTTBrokerURL, "tls://") || s.Config.MQTTSSLEnabled {
		log.Println("[MQTT] 使用TLS连接")
		tlsConfig := &tls.Config{
			InsecureSkipVerify: true, // 默认跳过验证，如有CA证书则使用
		}

		if s.Config.MQTTCACertPath != "" {
			log.Printf("[MQTT] 使用CA证书: %s", s.Config.MQTTCACertPath)
		}

		opts.SetTLSConfig(tlsConfig)
	}

	// 设置连接丢失回调
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] 连接丢失: %v", err)
		s.connectedMutex.Lock()
		s.IsConnected = false
		s.connectedMutex.Unlock()
	})

	// 设置连接建立回调
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("[MQTT] 成功连接到", s.Config.MQTTBrokerURL)
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()
	})

	// 设置重连回调
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("[MQTT] 正在尝试重连...")
	})

	s.Client = mqtt.NewClient(opts)
}

// Connect 连接到MQTT服务器，带有重试机制
func (s *MessagingService) Connect() error {
	log.Printf("[MQTT] 正在连接到 %s...", s.Config.MQTTBrokerURL)

	// 加锁，确保同一时间只有一个连接尝试
	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client.IsConnected()
	s.connectedMutex.RUnlock()

	if isConnected {
		return nil
	}

	// 最大重试次数和指数退避策略
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		token := s.Client.Connect()
		if token.WaitTimeout(5*time.Second) && token.Error() == nil {
			s.connectedMutex.Lock()
			s.IsConnected = true
			s.connectedMutex.Unlock()
			log.Printf("[MQTT] 成功连接到 %s", s.Config.MQTTBrokerURL)
			return nil
		}

		err = token.Error()
		backoffTime := time.Duration(1<<uint(i)) * time.Second // 指数退避: 1s, 2s, 4s, 8s, 16s
		log.Printf("[MQTT] 连接尝试 %d/%d 失败: %v, 将在 %v 后重试", i+1, maxRetries, err, backoffTime)
		time.Sleep(backoffTime)
	}

	return fmt.Errorf("[MQTT] 连接失败，已尝试 %d 次: %v", maxRetries, err)
}

// Disconnect 断开与MQTT服务器的连接
func (s *MessagingService) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}
}

// SendToGroup 发布消息到指定的指令组
func (s *MessagingService) SendToGroup(group string, payload interface{}) error {
	// 加锁保护发布过程，避免并发发布冲突
	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	// 检查连接状态
	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client.IsConnected()
	s.connectedMutex.RUnlock()

	if !isConnected {
		log.Printf("[MQTT] 客户端未连接，尝试重新连接...")
		token := s.Client.Connect()
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			return &ExternalServiceError{Service: "messaging", Err: fmt.Errorf("MQTT客户端未连接: %v", token.Error())}
		}
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()
	}

	// 序列化消息
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	// 发布消息，使用QoS 1确保消息至少被传递一次
	qos := byte(1)
	retained := false // 非持久消息

	token := s.Client.Publish(group, qos, retained, jsonData)

	// 设置超时时间，避免无限等待
	if !token.WaitTimeout(3 * time.Second) {
		return &ExternalServiceError{Service: "messaging", Err: fmt.Errorf("发布消息超时")}
	}

	if token.Error() != nil {
		return &ExternalServiceError{Service: "messaging", Err: fmt.Errorf("发布消息失败: %v", token.Error())}
	}

	log.Printf("[MQTT] 已发布消息到组: %s", group)
	return nil
}
