package notification

import "go.uber.org/fx"

var Module = fx.Module("notification.service",
	fx.Provide(NewService, NewHandler, NewQueueDispatcher),
	fx.Invoke(RegisterRoutes),
)

// WorkerModule consumes the queued deliveries; it needs task.Server.
var WorkerModule = fx.Module("notification.worker",
	fx.Provide(NewWorker),
	fx.Invoke(registerHandlers),
)
