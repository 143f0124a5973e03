// Package tlsutil 为访问大模型服务的 HTTP 客户端提供加固的传输层：
// TLS 1.2+，仅 AEAD 密码套件，遵循 HTTPS_PROXY 等环境变量。
package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DefaultMaxConnsPerHost 单个服务商主机的空闲连接上限
const DefaultMaxConnsPerHost = 16

// DefaultTLSConfig returns a hardened TLS configuration.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// OracleTransport 返回面向单一服务商主机的 Transport。
// 所有 worker 共享同一主机，maxConnsPerHost <= 0 时使用 DefaultMaxConnsPerHost。
func OracleTransport(maxConnsPerHost int) *http.Transport {
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = DefaultMaxConnsPerHost
	}
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxConnsPerHost,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// OracleHTTPClient 返回不设总超时的客户端：每次调用的截止时间由 context 决定。
func OracleHTTPClient(maxConnsPerHost int) *http.Client {
	return &http.Client{Transport: OracleTransport(maxConnsPerHost)}
}
