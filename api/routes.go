package api

import (
	apirouter "github.com/mrz1836/go-api-router"
)

// RegisterRoutes register all the package specific routes
func RegisterRoutes(router *apirouter.Router, server *Server) {

	// Delay and Notify recovery
	router.HTTPRouter.POST("/api/accounts/:accountId/delay-notify", router.Request(server.createRecovery))
	router.HTTPRouter.DELETE("/api/accounts/:accountId/delay-notify", router.Request(server.cancelRecovery))
	router.HTTPRouter.PUT("/api/accounts/:accountId/delay-notify/test", router.Request(server.updateTestDelay))
	router.HTTPRouter.POST("/api/accounts/:accountId/delay-notify/complete", router.Request(server.completeRecovery))
	router.HTTPRouter.POST("/api/accounts/:accountId/delay-notify/send-verification-code", router.Request(server.sendVerificationCode))
	router.HTTPRouter.POST("/api/accounts/:accountId/delay-notify/verify-code", router.Request(server.verifyCode))
	router.HTTPRouter.GET("/api/accounts/:accountId/recovery", router.Request(server.recoveryStatus))
	router.HTTPRouter.GET("/api/accounts/:accountId/recovery/history", router.Request(server.recoveryHistory))

	// Authentication key rotation
	router.HTTPRouter.POST("/api/accounts/:accountId/authentication-keys", router.Request(server.rotateAuthKeys))

	// Trusted contact relationships
	router.HTTPRouter.POST("/api/accounts/:accountId/recovery/relationships", router.Request(server.createRelationship))
	router.HTTPRouter.GET("/api/accounts/:accountId/recovery/relationships", router.Request(server.listRelationships))
	router.HTTPRouter.PUT("/api/accounts/:accountId/recovery/relationships", router.Request(server.endorseRelationships))
	router.HTTPRouter.PUT("/api/accounts/:accountId/recovery/relationships/:relationshipId", router.Request(server.updateRelationship))
	router.HTTPRouter.DELETE("/api/accounts/:accountId/recovery/relationships/:relationshipId", router.Request(server.deleteRelationship))
	router.HTTPRouter.GET("/api/accounts/:accountId/recovery/relationship-invitations/:code", router.Request(server.invitationForCode))

	// Social challenges
	router.HTTPRouter.POST("/api/accounts/:accountId/recovery/social-challenges", router.Request(server.startChallenge))
	router.HTTPRouter.POST("/api/accounts/:accountId/recovery/verify-social-challenge", router.Request(server.verifyChallenge))
	router.HTTPRouter.PUT("/api/accounts/:accountId/recovery/social-challenges/:challengeId", router.Request(server.respondToChallenge))
	router.HTTPRouter.GET("/api/accounts/:accountId/recovery/social-challenges/:challengeId", router.Request(server.fetchChallenge))
}
