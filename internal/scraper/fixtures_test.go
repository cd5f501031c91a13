package scraper

const searchPage = `
<html><body>
<div class="card" data-docid="mock.package.app1">
    <a class="subtitle" title="Developer1">Developer1</a>
    <a class="card-click-target" href="http://share.url/app1">Link</a>
    <a class="title" title="App1">App1</a>
    <div class="description">
        Description for<br/>
        application1
    </div>
    <img class="cover-image" src="image1-main"
         data-cover-small="image1-small" data-cover-large="image1-large"/>
</div>
<div class="card" data-docid="mock.package.app2">
    <a class="subtitle" title="Developer2">Developer2</a>
    <a class="card-click-target" href="http://share.url/app2">Link</a>
    <a class="title" title="App2">App2</a>
    <div class="description">
        Description for<br/>
        application2
    </div>
    <img class="cover-image" src="image2-main"
         data-cover-small="image2-small" data-cover-large="image2-large"/>
</div>
<div class="card" data-docid="different.package.app3"></div>
</body></html>
`

const developerPage = `
<html><body>
<div class="card" data-docid="mock.package.app1">
    <a class="subtitle" title="Test Dev">Test Dev</a>
    <a class="card-click-target" href="/store/apps/details?id=mock.package.app1">Link</a>
    <a class="title" title="App1">App1</a>
    <div class="description">
        Description for<br/>
        application1
    </div>
    <img class="cover-image" src="//img.test/image1-main"
         data-cover-small="//img.test/image1-small" data-cover-large="//img.test/image1-large"/>
</div>
<div class="card" data-docid="mock.package.app2">
    <a class="subtitle" title="Test Dev">Test Dev</a>
    <a class="card-click-target" href="/store/apps/details?id=mock.package.app2">Link</a>
    <a class="title" title="App2">App2</a>
    <div class="description">
        Description for<br/>
        application2
    </div>
    <img class="cover-image" src="//img.test/image2-main"
         data-cover-small="//img.test/image2-small" data-cover-large="//img.test/image2-large"/>
</div>
</body></html>
`

const detailsPage = `
<html><head>
    <link rel="canonical" href="http://share.url"/>
</head><body>
<div class="main-content">
    <meta data-docid="mock.package.app"/>
    <span itemprop="genre">Genre 1</span>
    <span itemprop="genre">Genre 2</span>
    <div class="document-title">App Title</div>
    <div itemprop="author">
        <a class="primary"><span itemprop="name">Developer Name</span></a>
        <a class="dev-link" href="mailto:dev@developer.site">Email</a>
        <a class="dev-link" href="https://developer.site">Dev Site</a>
    </div>
    <img class="cover-image" src="//cover.image"/>
    <img class="full-screenshot" src="http://screenshot.image"/>
    <div class="show-more-content">
        <div>App Description</div>
    </div>
    <div class="reviews">
        <meta itemprop="ratingValue" content="3.2"/>
        <meta itemprop="ratingCount" content="42"/>
        <div class="rating-bar-container one">
            <span class="bar-number">10</span>
        </div>
        <div class="rating-bar-container two">
            <span class="bar-number">20</span>
        </div>
        <div class="rating-bar-container three">
            <span class="bar-number">30</span>
        </div>
        <div class="rating-bar-container four">
            <span class="bar-number">40</span>
        </div>
        <div class="rating-bar-container five">
            <span class="bar-number">50</span>
        </div>
    </div>
    <div class="whatsnew">
        <div class="recent-change">
            A recent
            change
        </div>
        <div class="recent-change">
            Another change
        </div>
    </div>
    <div itemprop="datePublished">PublishDate</div>
    <div itemprop="numDownloads">DownloadCount</div>
</div>
</body></html>
`

const detailsMissingReviews = `
<html><head><link rel="canonical" href="http://share.url"/></head><body>
<div class="main-content">
    <meta data-docid="mock.package.app"/>
    <div class="document-title">App Title</div>
    <div itemprop="author"><a class="primary"><span itemprop="name">Dev</span></a></div>
</div>
</body></html>
`

const detailsOtherApp = `
<html><head><link rel="canonical" href="http://share.url"/></head><body>
<div class="main-content">
    <meta data-docid="some.other.app"/>
    <div class="document-title">Other</div>
</div>
</body></html>
`
