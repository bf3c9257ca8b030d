/*
Package pkg 包含了项目的公共类部分。具体地：

config.go -- 统一定义了所有配置的加载项，便于使用

logger.go -- 配置logger项，logger 通过 context 传递

errChan.go -- 后台任务的错误上报通道

metrics.go -- prometheus 指标
*/
package pkg
