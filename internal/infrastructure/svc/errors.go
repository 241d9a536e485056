package svc

import "errors"

// ErrStorageInitFailed 存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrGatewayInitFailed 交易所网关初始化失败
var ErrGatewayInitFailed = errors.New("gateway initialization failed")
